package sensor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// X11 captures the top-left region of the X11 root window as a camera
type X11 struct {
	conn    *xgb.Conn
	screen  *xproto.ScreenInfo
	mu      sync.Mutex
	width   int
	height  int
	quality int
	img     *image.RGBA
	buf     bytes.Buffer
}

// OpenX11 connects to $DISPLAY. The capture region is clipped to the screen.
func OpenX11(width, height, quality int) (*X11, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	if d := int(screen.RootDepth); d != 24 && d != 32 {
		conn.Close()
		return nil, fmt.Errorf("unsupported root depth %d", d)
	}

	c := &X11{
		conn:    conn,
		screen:  screen,
		width:   min(width, int(screen.WidthInPixels)),
		height:  min(height, int(screen.HeightInPixels)),
		quality: quality,
	}

	logger.WithComponent("sensor").Info().
		Int("width", c.width).
		Int("height", c.height).
		Uint8("depth", screen.RootDepth).
		Msg("X11 capture ready")
	return c, nil
}

// Name returns the driver name
func (c *X11) Name() string {
	return "x11"
}

// Capture grabs the root window region and encodes it
func (c *X11) Capture(ctx context.Context, fn func(jpeg []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := xproto.GetImage(
		c.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(c.screen.Root),
		0, 0,
		uint16(c.width), uint16(c.height),
		0xffffffff,
	).Reply()
	if err != nil {
		return fmt.Errorf("failed to get image: %w", err)
	}

	img := c.convert(reply.Data)
	c.buf.Reset()
	if err := jpeg.Encode(&c.buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return fn(c.buf.Bytes())
}

// convert turns ZPixmap BGRX rows into RGBA, reusing the destination image
func (c *X11) convert(data []byte) *image.RGBA {
	if c.img == nil {
		c.img = image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	}
	pix := c.img.Pix
	for i := 0; i+3 < len(data) && i+3 < len(pix); i += 4 {
		pix[i] = data[i+2]
		pix[i+1] = data[i+1]
		pix[i+2] = data[i]
		pix[i+3] = 255
	}
	return c.img
}

// Set supports quality only; the X server has no sensor controls
func (c *X11) Set(setting Setting, value int) error {
	if setting != Quality {
		return fmt.Errorf("%w: %s", ErrUnsupported, setting)
	}
	if value < 1 || value > 100 {
		return fmt.Errorf("quality %d out of range 1..100", value)
	}
	c.mu.Lock()
	c.quality = value
	c.mu.Unlock()
	return nil
}

// Close closes the X11 connection
func (c *X11) Close() error {
	c.conn.Close()
	return nil
}
