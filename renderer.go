package img2ascii

import (
	"fmt"
	"image"
	"os"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/rekav/img2ascii/imageutil"
)

const (
	// DefaultMaxPixels bounds the export bitmap (32 Mpx, 128 MiB of RGBA).
	DefaultMaxPixels = 1 << 25
	// MaxPNGSize bounds the encoded artifact.
	MaxPNGSize = 50 * 1024 * 1024
	// MaxFontSize bounds font_size before any face is built.
	MaxFontSize = 256

	renderDPI = 72
)

// TextRenderer draws a CharacterGrid onto a bitmap with a monospace
// TrueType font. A TextRenderer is immutable after construction and may
// be shared between goroutines.
type TextRenderer struct {
	font      *truetype.Font
	fontName  string
	maxPixels int

	err error // first option failure, reported by NewTextRenderer
}

// RendererOption is a functional option for configuring a TextRenderer.
type RendererOption func(*TextRenderer)

// NewTextRenderer creates a renderer. Without WithFont or WithFontFile
// it uses the embedded Go Mono font.
func NewTextRenderer(opts ...RendererOption) (*TextRenderer, error) {
	r := &TextRenderer{maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(r)
	}
	if r.err != nil {
		return nil, newError(ErrRender, r.err, "failed to load font")
	}
	if r.font == nil {
		f, err := truetype.Parse(gomono.TTF)
		if err != nil {
			return nil, newError(ErrRender, err, "failed to parse built-in font")
		}
		r.font = f
		r.fontName = "Go Mono"
	}
	return r, nil
}

// WithFontFile loads a TTF font from path. An empty path keeps the
// default font.
func WithFontFile(path string) RendererOption {
	return func(r *TextRenderer) {
		if path == "" || r.err != nil {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			r.err = err
			return
		}
		f, err := freetype.ParseFont(data)
		if err != nil {
			r.err = fmt.Errorf("%s: %w", path, err)
			return
		}
		r.font = f
		r.fontName = path
	}
}

// WithFont sets an already parsed font.
func WithFont(f *truetype.Font, name string) RendererOption {
	return func(r *TextRenderer) {
		r.font = f
		r.fontName = name
	}
}

// WithMaxPixels sets the largest bitmap, in pixels, the renderer will
// allocate.
func WithMaxPixels(n int) RendererOption {
	return func(r *TextRenderer) {
		if n > 0 {
			r.maxPixels = n
		}
	}
}

// FontName returns the font's path or built-in name.
func (r *TextRenderer) FontName() string { return r.fontName }

// Cell is the pixel geometry of one character at a given font size.
type Cell struct {
	Width  int
	Height int
	// Ascent is the baseline offset from the top of the cell.
	Ascent int
}

// CellSize measures a character cell: the advance of "A" by the font's
// line skip.
func (r *TextRenderer) CellSize(fontSize int) (Cell, error) {
	if fontSize <= 0 || fontSize > MaxFontSize {
		return Cell{}, newError(ErrConfiguration, nil, "font size %d out of range (1-%d)", fontSize, MaxFontSize)
	}
	face := truetype.NewFace(r.font, &truetype.Options{
		Size:              float64(fontSize),
		DPI:               renderDPI,
		Hinting:           font.HintingFull,
		GlyphCacheEntries: 1,
	})
	defer face.Close()

	adv, ok := face.GlyphAdvance('A')
	if !ok {
		return Cell{}, newError(ErrRender, nil, "font %s has no glyph for 'A'", r.fontName)
	}
	m := face.Metrics()
	cell := Cell{
		Width:  adv.Round(),
		Height: (m.Ascent + m.Descent).Ceil(),
		Ascent: m.Ascent.Ceil(),
	}
	if h := m.Height.Ceil(); h > cell.Height {
		cell.Height = h
	}
	if cell.Width <= 0 || cell.Height <= 0 {
		return Cell{}, newError(ErrConfiguration, nil, "invalid cell size %dx%d", cell.Width, cell.Height)
	}
	return cell, nil
}

// Render draws grid onto a new bitmap of grid.Width*cell.Width by
// grid.Height*cell.Height pixels: the background fills every pixel, and
// each row is drawn as one anti-aliased run in the foreground color.
func (r *TextRenderer) Render(grid *CharacterGrid, opts ExportOptions) (*imageutil.RGBAImage, error) {
	if grid == nil || grid.Width <= 0 || grid.Height <= 0 {
		return nil, newError(ErrConfiguration, nil, "empty character grid")
	}
	cell, err := r.CellSize(opts.FontSize)
	if err != nil {
		return nil, err
	}

	w, h := grid.Width*cell.Width, grid.Height*cell.Height
	if w <= 0 || h <= 0 {
		return nil, newError(ErrAllocation, nil, "invalid bitmap dimensions %dx%d", w, h)
	}
	if w > r.maxPixels/h {
		return nil, newError(ErrAllocation, nil, "bitmap %dx%d exceeds %d pixels", w, h, r.maxPixels)
	}

	img := imageutil.NewRGBAImage(w, h)
	img.Fill(opts.Background)

	ctx := freetype.NewContext()
	ctx.SetDPI(renderDPI)
	ctx.SetFont(r.font)
	ctx.SetFontSize(float64(opts.FontSize))
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img.RGBA)
	ctx.SetSrc(image.NewUniform(opts.Foreground.ToColor()))
	ctx.SetHinting(font.HintingFull)

	for y := 0; y < grid.Height; y++ {
		pt := freetype.Pt(0, y*cell.Height+cell.Ascent)
		if _, err := ctx.DrawString(grid.Line(y), pt); err != nil {
			return nil, newError(ErrRender, err, "failed to draw row %d", y)
		}
	}
	return img, nil
}

// RenderPNG renders grid and encodes the bitmap as PNG.
func (r *TextRenderer) RenderPNG(grid *CharacterGrid, opts ExportOptions) ([]byte, error) {
	img, err := r.Render(grid, opts)
	if err != nil {
		return nil, err
	}
	data, err := imageutil.EncodePNG(img)
	if err != nil {
		return nil, newError(ErrRender, err, "")
	}
	if len(data) == 0 {
		return nil, newError(ErrRender, nil, "no data written to PNG")
	}
	if len(data) > MaxPNGSize {
		return nil, newError(ErrAllocation, nil, "PNG of %d bytes exceeds %d", len(data), MaxPNGSize)
	}
	return data, nil
}
