package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRestartFunc(t *testing.T) {
	var reasons []string
	var r Restarter = RestartFunc(func(reason string) {
		reasons = append(reasons, reason)
	})

	r.Restart("reset requested")
	r.Restart("frame slot cannot grow")
	assert.Equal(t, []string{"reset requested", "frame slot cannot grow"}, reasons)
}
