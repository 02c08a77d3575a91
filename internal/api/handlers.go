package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bryanchriswhite/CamStreamer/internal/output"
	"github.com/bryanchriswhite/CamStreamer/internal/sensor"
	"github.com/bryanchriswhite/CamStreamer/internal/stream"
)

// ResetParam is the control query parameter that restarts the device
const ResetParam = "reset"

// handleStream takes over the connection and hands it to the pipeline.
// The response is written raw on the hijacked connection by the viewer.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Stream.RejectWhenFull && s.pipeline.Full() {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("Viewer limit reached, rejecting")
		http.Error(w, "viewer limit reached", http.StatusServiceUnavailable)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		s.log.Error().Err(err).Msg("Hijack failed")
		return
	}

	v := output.NewViewer(conn, s.cfg.Stream.WriteTimeout(), s.cfg.Stream.ProbeTimeout())
	err = s.pipeline.Accept(v)
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrRegistryFull):
		// the prologue is out; hold the connection until the client gives up
		v.Stall(r.Context())
		s.log.Debug().Str("viewer", v.ID()).Msg("Unregistered viewer went away")
	default:
		s.log.Debug().Err(err).Str("remote", v.RemoteAddr()).Msg("Viewer not accepted")
		v.Close()
	}
}

// handleSnapshot captures one fresh frame straight from the driver
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var frame []byte
	err := s.camera.Capture(r.Context(), func(jpeg []byte) error {
		frame = append(frame, jpeg...)
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Snapshot capture failed")
		http.Error(w, "capture failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", "inline; filename=capture.jpg")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.Write(frame)
}

// settingChange is one requested sensor change. Parameters that are absent
// from the query never produce one.
type settingChange struct {
	setting sensor.Setting
	value   int
}

// parseControl extracts the recognized settings present in q. Values that
// are not integers are returned in invalid and not applied.
func parseControl(q url.Values) (changes []settingChange, invalid []string) {
	for _, setting := range sensor.Settings() {
		key := string(setting)
		if !q.Has(key) {
			continue
		}
		v, err := strconv.Atoi(q.Get(key))
		if err != nil {
			invalid = append(invalid, key)
			continue
		}
		changes = append(changes, settingChange{setting: setting, value: v})
	}
	return changes, invalid
}

type controlResponse struct {
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped,omitempty"`
	Reset   bool     `json:"reset,omitempty"`
}

// handleControl forwards each present setting to the driver, in the fixed
// settings order.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	changes, invalid := parseControl(q)

	resp := controlResponse{Applied: []string{}}
	for _, key := range invalid {
		s.log.Warn().Str("setting", key).Str("value", q.Get(key)).Msg("Ignoring non-integer setting")
		resp.Skipped = append(resp.Skipped, key)
	}

	for _, c := range changes {
		err := s.camera.Set(c.setting, c.value)
		switch {
		case err == nil:
			resp.Applied = append(resp.Applied, string(c.setting))
			s.log.Info().Str("setting", string(c.setting)).Int("value", c.value).Msg("Sensor setting applied")
		case errors.Is(err, sensor.ErrUnsupported):
			resp.Skipped = append(resp.Skipped, string(c.setting))
			s.log.Warn().Str("setting", string(c.setting)).Str("driver", s.camera.Name()).Msg("Setting not supported by driver")
		default:
			s.log.Error().Err(err).Str("setting", string(c.setting)).Msg("Sensor setting failed")
			http.Error(w, fmt.Sprintf("%s: %v", c.setting, err), http.StatusInternalServerError)
			return
		}
	}

	resp.Reset = q.Has(ResetParam)
	if resp.Reset {
		w.Header().Set("Connection", "close")
	}
	writeJSON(w, resp)

	if resp.Reset {
		http.NewResponseController(w).Flush()
		go s.restarter.Restart("reset requested by " + r.RemoteAddr)
	}
}
