package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"server_port", "9090", 9090, false},
		{"stream.capacity", "ten", nil, true},
		{"stream.reject_when_full", "true", true, false},
		{"log_pretty", "maybe", nil, true},
		{"log_level", "debug", "debug", false},
		{"log_level", "loud", nil, true},
		{"sensor.driver", "webcam", "webcam", false},
		{"endpoints.stream", "/live", "/live", false},
		{"log_level", "disabled", "disabled", false},
		{"foo", "1", nil, true},
		{"stream", "4", nil, true},
		{"stream.bogus", "true", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseValue(tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
