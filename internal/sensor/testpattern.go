package sensor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// frameSizes indexes the framesize setting, smallest first
var frameSizes = []image.Point{
	{96, 96}, {160, 120}, {176, 144}, {240, 176}, {240, 240},
	{320, 240}, {400, 296}, {480, 320}, {640, 480}, {800, 600},
	{1024, 768}, {1280, 720}, {1280, 1024}, {1600, 1200},
}

var barColors = []color.RGBA{
	{255, 255, 255, 255}, {255, 255, 0, 255}, {0, 255, 255, 255}, {0, 255, 0, 255},
	{255, 0, 255, 255}, {255, 0, 0, 255}, {0, 0, 255, 255}, {0, 0, 0, 255},
}

// TestPattern is a synthetic camera that renders a moving gradient (or SMPTE
// style color bars) captioned with a frame counter and timestamp.
type TestPattern struct {
	mu       sync.Mutex
	size     image.Point
	quality  int
	frame    uint64
	values   map[Setting]int
	buf      bytes.Buffer
	now      func() time.Time
	img      *image.RGBA
	caption  color.RGBA
	captionX int
}

// NewTestPattern creates a test pattern source of the given size
func NewTestPattern(width, height, quality int) *TestPattern {
	return &TestPattern{
		size:     image.Pt(width, height),
		quality:  quality,
		values:   make(map[Setting]int),
		now:      time.Now,
		caption:  color.RGBA{255, 255, 255, 255},
		captionX: 5,
	}
}

// Name returns the driver name
func (p *TestPattern) Name() string {
	return "testpattern"
}

// Capture renders and encodes the next frame
func (p *TestPattern) Capture(ctx context.Context, fn func(jpeg []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.frame++
	img := p.render()

	p.buf.Reset()
	if err := jpeg.Encode(&p.buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return fn(p.buf.Bytes())
}

// Set applies a setting. framesize, quality, brightness, hmirror, vflip and
// colorbar change the rendered output; everything else is recorded only.
func (p *TestPattern) Set(setting Setting, value int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch setting {
	case FrameSize:
		if value < 0 || value >= len(frameSizes) {
			return fmt.Errorf("framesize %d out of range 0..%d", value, len(frameSizes)-1)
		}
		p.size = frameSizes[value]
	case Quality:
		if value < 1 || value > 100 {
			return fmt.Errorf("quality %d out of range 1..100", value)
		}
		p.quality = value
	case Brightness:
		if value < -2 || value > 2 {
			return fmt.Errorf("brightness %d out of range -2..2", value)
		}
	}
	p.values[setting] = value
	return nil
}

// Value reports the last value applied for a setting
func (p *TestPattern) Value(setting Setting) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[setting]
	return v, ok
}

// Close is a no-op
func (p *TestPattern) Close() error {
	return nil
}

func (p *TestPattern) render() *image.RGBA {
	w, h := p.size.X, p.size.Y
	if p.img == nil || p.img.Bounds().Dx() != w || p.img.Bounds().Dy() != h {
		p.img = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	img := p.img

	offset := int(p.frame * 4)
	shift := p.values[Brightness] * 32
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var c color.RGBA
			if p.values[Colorbar] != 0 {
				c = barColors[x*len(barColors)/w]
			} else {
				c = color.RGBA{
					R: uint8((x + offset) * 255 / (w + 1)),
					G: uint8(y * 255 / (h + 1)),
					B: uint8(offset),
					A: 255,
				}
			}
			c.R, c.G, c.B = clamp(int(c.R)+shift), clamp(int(c.G)+shift), clamp(int(c.B)+shift)

			dx, dy := x, y
			if p.values[HMirror] != 0 {
				dx = w - 1 - x
			}
			if p.values[VFlip] != 0 {
				dy = h - 1 - y
			}
			img.SetRGBA(dx, dy, c)
		}
	}

	p.drawCaption(img, fmt.Sprintf("#%d %s", p.frame, p.now().Format("15:04:05.000")))
	return img
}

// drawCaption writes text on a dark strip in the top-left corner
func (p *TestPattern) drawCaption(img *image.RGBA, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(p.caption),
		Face: face,
	}

	width := d.MeasureString(text).Ceil() + 2*p.captionX
	strip := image.Rect(0, 0, width, face.Height+6).Intersect(img.Bounds())
	draw.Draw(img, strip, image.NewUniform(color.RGBA{0, 0, 0, 160}), image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{X: fixed.I(p.captionX), Y: fixed.I(face.Ascent + 3)}
	d.DrawString(text)
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
