package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const minProbe = time.Millisecond

// Viewer is a hijacked HTTP connection receiving the MJPEG stream
type Viewer struct {
	id   string
	conn net.Conn

	writeTimeout time.Duration
	probeTimeout time.Duration

	// used only by the goroutine serving frames
	header []byte
	probe  [1]byte

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewViewer takes ownership of conn. Deadlines left over from the HTTP
// server are cleared. A zero writeTimeout disables the write deadline.
func NewViewer(conn net.Conn, writeTimeout, probeTimeout time.Duration) *Viewer {
	conn.SetDeadline(time.Time{})
	return &Viewer{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
		probeTimeout: max(probeTimeout, minProbe),
	}
}

// ID returns the viewer id used in logs
func (v *Viewer) ID() string {
	return v.id
}

// RemoteAddr returns the peer address
func (v *Viewer) RemoteAddr() string {
	return v.conn.RemoteAddr().String()
}

// Alive tries a one byte read with a short deadline. A timeout means the
// peer is still there and silent; EOF or a reset means it is gone.
func (v *Viewer) Alive() bool {
	if v.closed.Load() {
		return false
	}
	if err := v.conn.SetReadDeadline(time.Now().Add(v.probeTimeout)); err != nil {
		return false
	}
	_, err := v.conn.Read(v.probe[:])
	if err == nil {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// WritePrologue sends the response status line and headers
func (v *Viewer) WritePrologue() error {
	v.armWrite()
	if _, err := io.WriteString(v.conn, Prologue); err != nil {
		return fmt.Errorf("viewer %s: %w", v.id, err)
	}
	return nil
}

// WriteFrame sends one JPEG part
func (v *Viewer) WriteFrame(jpeg []byte) error {
	v.header = AppendPartHeader(v.header[:0], len(jpeg))
	v.armWrite()
	if err := writePart(v.conn, v.header, jpeg); err != nil {
		return fmt.Errorf("viewer %s: %w", v.id, err)
	}
	return nil
}

func (v *Viewer) armWrite() {
	if v.writeTimeout > 0 {
		v.conn.SetWriteDeadline(time.Now().Add(v.writeTimeout))
	}
}

// Stall keeps an unregistered viewer's connection open without serving it,
// until the peer hangs up or ctx is done. The connection is closed on return.
func (v *Viewer) Stall(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { v.Close() })
	defer stop()

	io.Copy(io.Discard, v.conn)
	v.Close()
}

// Close closes the connection. Safe to call more than once.
func (v *Viewer) Close() error {
	var err error
	v.closeOnce.Do(func() {
		v.closed.Store(true)
		err = v.conn.Close()
	})
	return err
}
