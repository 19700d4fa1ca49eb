package img2ascii

import (
	"strings"

	"github.com/rekav/img2ascii/imageutil"
)

// CharacterGrid is the quantizer's output: Height rows of Width ramp
// characters.
type CharacterGrid struct {
	Width  int
	Height int
	cells  []rune
}

// At returns the character at column x of row y.
func (g *CharacterGrid) At(x, y int) rune {
	return g.cells[y*g.Width+x]
}

// Line returns row y without its terminator.
func (g *CharacterGrid) Line(y int) string {
	return string(g.cells[y*g.Width : (y+1)*g.Width])
}

// Lines returns every row in order, without terminators.
func (g *CharacterGrid) Lines() []string {
	lines := make([]string, g.Height)
	for y := range lines {
		lines[y] = g.Line(y)
	}
	return lines
}

// String serializes the grid with a '\n' after every row.
func (g *CharacterGrid) String() string {
	var b strings.Builder
	b.Grow((g.Width + 1) * g.Height)
	for y := 0; y < g.Height; y++ {
		for _, r := range g.cells[y*g.Width : (y+1)*g.Width] {
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Dimensions derives the character grid for a w x h source image.
//
// A requested width outside (0, MaxTargetWidth] is replaced by
// fallbackWidth. The height keeps the image's aspect ratio corrected for
// CharAspect; outside (0, MaxTargetHeight] it is replaced by
// FallbackHeight. The arithmetic is float32, truncating.
func Dimensions(w, h, width, fallbackWidth int) (tw, th int, err error) {
	if w <= 0 || h <= 0 {
		return 0, 0, newError(ErrConfiguration, nil, "invalid source dimensions %dx%d", w, h)
	}

	tw = width
	if tw <= 0 || tw > MaxTargetWidth {
		tw = fallbackWidth
	}
	if tw <= 0 || tw > MaxTargetWidth {
		return 0, 0, newError(ErrConfiguration, nil, "invalid target width %d", tw)
	}

	th = int(float32(h*tw) / float32(w) / float32(CharAspect))
	if th <= 0 || th > MaxTargetHeight {
		th = FallbackHeight
	}
	return tw, th, nil
}

// diffusion carries Floyd–Steinberg error for the current and next row.
// Column x lives at index x+1 so that x-1 and x+1 never leave the slice.
type diffusion struct {
	cur, next []float32
}

func newDiffusion(width int) *diffusion {
	return &diffusion{
		cur:  make([]float32, width+4),
		next: make([]float32, width+4),
	}
}

// advance moves to the next row: next becomes current and is cleared.
func (d *diffusion) advance() {
	copy(d.cur, d.next)
	clear(d.next)
}

// Quantize converts img to a tw x th grid of ramp characters using
// nearest-neighbour sampling, BT.601 luminance and Floyd–Steinberg error
// diffusion (7/16 right, 3/16 below-left, 5/16 below, 1/16 below-right).
//
// The result is deterministic: identical inputs give identical grids on
// every platform. A single-character ramp never diffuses error.
func Quantize(img *imageutil.RGBAImage, tw, th int, ramp Ramp) (*CharacterGrid, error) {
	if len(ramp) == 0 {
		return nil, newError(ErrConfiguration, nil, "empty ramp")
	}
	if tw <= 0 || th <= 0 {
		return nil, newError(ErrConfiguration, nil, "invalid target size %dx%d", tw, th)
	}
	w, h := img.Width(), img.Height()
	if w <= 0 || h <= 0 {
		return nil, newError(ErrConfiguration, nil, "empty source image")
	}

	n := len(ramp)
	levels := float32(n)
	grid := &CharacterGrid{Width: tw, Height: th, cells: make([]rune, tw*th)}
	d := newDiffusion(tw)

	for y := 0; y < th; y++ {
		sy := y * h / th
		row := grid.cells[y*tw : (y+1)*tw]
		for x := 0; x < tw; x++ {
			sx := x * w / tw

			gray := imageutil.Luminance(img.GetRGB(sx, sy)) + d.cur[x+1]
			if gray < 0 {
				gray = 0
			}
			if gray > 255 {
				gray = 255
			}

			idx := int(float32(gray*levels) / 256)
			if idx >= n {
				idx = n - 1
			}
			if idx < 0 {
				idx = 0
			}
			row[x] = ramp[idx]

			if n == 1 {
				continue
			}
			qe := gray - float32(float32(idx)*255)/float32(n-1)
			d.cur[x+2] += float32(qe*7) / 16
			d.next[x] += float32(qe*3) / 16
			d.next[x+1] += float32(qe*5) / 16
			d.next[x+2] += qe / 16
		}
		d.advance()
	}
	return grid, nil
}
