package img2ascii

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rekav/img2ascii/imageutil"
	"github.com/rekav/img2ascii/log"
)

const (
	// MaxRawSize bounds the compressed image handed to Convert.
	MaxRawSize = 20 * 1024 * 1024
	// DefaultMaxSourcePixels bounds the declared width*height of an
	// input image, checked against its header before any pixel is
	// decoded.
	DefaultMaxSourcePixels = 1 << 25
)

// Trigger delivers an exported artifact, for example by writing it to
// disk or uploading it, and returns where it went.
type Trigger interface {
	Deliver(ctx context.Context, name string, data []byte) (string, error)
}

// Converter runs one conversion: decode, quantize, preview and, when
// requested, render and deliver the PNG export.
type Converter struct {
	renderer *TextRenderer
	trigger  Trigger
	sink     LineSink
	tracer   trace.Tracer

	maxSourcePixels int
}

// ConverterOption is a functional option for configuring a Converter.
type ConverterOption func(*Converter)

// WithRenderer sets the text renderer used for exports.
func WithRenderer(r *TextRenderer) ConverterOption {
	return func(c *Converter) {
		c.renderer = r
	}
}

// WithTrigger sets where exported PNGs are delivered.
func WithTrigger(t Trigger) ConverterOption {
	return func(c *Converter) {
		c.trigger = t
	}
}

// WithLineSink sets where preview and diagnostic lines are written.
func WithLineSink(s LineSink) ConverterOption {
	return func(c *Converter) {
		c.sink = s
	}
}

// WithMaxSourcePixels bounds the pixel count of images accepted for
// decoding. Non-positive values are ignored.
func WithMaxSourcePixels(n int) ConverterOption {
	return func(c *Converter) {
		if n > 0 {
			c.maxSourcePixels = n
		}
	}
}

// WithTracer sets the tracer for pipeline spans.
func WithTracer(t trace.Tracer) ConverterOption {
	return func(c *Converter) {
		c.tracer = t
	}
}

// NewConverter creates a Converter. Without WithRenderer it renders with
// the built-in font; without WithTrigger exports fail with
// ErrConfiguration.
func NewConverter(opts ...ConverterOption) (*Converter, error) {
	c := &Converter{
		sink:   discardSink{},
		tracer: otel.Tracer("github.com/rekav/img2ascii"),

		maxSourcePixels: DefaultMaxSourcePixels,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.renderer == nil {
		r, err := NewTextRenderer()
		if err != nil {
			return nil, err
		}
		c.renderer = r
	}
	return c, nil
}

// Result describes a completed conversion.
type Result struct {
	Info imageutil.Info
	// Preview is the grid printed to the line sink.
	Preview *CharacterGrid
	// Export is the grid rendered to PNG; nil without an export.
	Export *CharacterGrid
	// PNG holds the encoded export.
	PNG []byte
	// Location is where the trigger delivered the PNG.
	Location string
}

// Convert decodes raw image bytes and runs the pipeline with opts. The
// stages run strictly in order; the first failure aborts the conversion
// and nothing is delivered.
func (c *Converter) Convert(ctx context.Context, raw []byte, opts ExportOptions) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "img2ascii.convert")
	defer span.End()
	span.SetAttributes(
		attribute.Int("image.bytes", len(raw)),
		attribute.Bool("export.requested", opts.ExportRequested),
	)

	res, err := c.convert(ctx, raw, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (c *Converter) convert(ctx context.Context, raw []byte, opts ExportOptions) (*Result, error) {
	c.system("Starting ASCII art preview...")
	switch {
	case len(raw) == 0:
		return nil, newError(ErrDecode, nil, "invalid image size 0")
	case len(raw) > MaxRawSize:
		return nil, newError(ErrPayloadTooLarge, nil, "image of %d bytes exceeds %d", len(raw), MaxRawSize)
	}

	res := &Result{}
	var img *imageutil.RGBAImage
	err := c.stage(ctx, "img2ascii.decode", func(context.Context) error {
		if err := c.checkSourceSize(raw); err != nil {
			return err
		}
		var err error
		img, res.Info, err = imageutil.Decode(raw)
		if err != nil {
			return newError(ErrDecode, err, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.system(fmt.Sprintf("Image decoded: %d x %d (%d ch, %s)",
		res.Info.Width, res.Info.Height, res.Info.Channels, res.Info.Format))

	tw, th, err := Dimensions(img.Width(), img.Height(), opts.TargetWidth, DefaultTargetWidth)
	if err != nil {
		return nil, err
	}
	c.system(fmt.Sprintf("Target size: %d wide x %d high (aspect %.1f)", tw, th, CharAspect))

	err = c.stage(ctx, "img2ascii.quantize", func(context.Context) error {
		var err error
		res.Preview, err = Quantize(img, tw, th, opts.Ramp)
		return err
	})
	if err != nil {
		return nil, err
	}
	n := Preview(res.Preview, c.sink)
	c.system(fmt.Sprintf("Printed %d lines (expected ~%d)", n, th))

	if !opts.ExportRequested {
		return res, nil
	}
	if err := c.export(ctx, img, res, opts); err != nil {
		return nil, err
	}
	return res, nil
}

// checkSourceSize reads the image header and rejects images whose
// declared size exceeds the pixel budget.
func (c *Converter) checkSourceSize(raw []byte) error {
	cfg, format, err := imageutil.DecodeConfig(raw)
	if err != nil {
		return newError(ErrDecode, err, "")
	}
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		return newError(ErrDecode, nil, "%s image declares %d x %d", format, w, h)
	}
	if w > c.maxSourcePixels/h {
		return newError(ErrAllocation, nil, "%s image of %d x %d exceeds %d pixels",
			format, w, h, c.maxSourcePixels)
	}
	return nil
}

// export renders the export grid and hands the PNG to the trigger only
// after encoding succeeded.
func (c *Converter) export(ctx context.Context, img *imageutil.RGBAImage, res *Result, opts ExportOptions) error {
	c.system("Starting PNG export...")
	for i, line := range opts.Describe() {
		if i == 0 {
			c.system(line)
		} else {
			c.sink.WriteLine(line, LineNormal)
		}
	}
	if c.trigger == nil {
		return newError(ErrConfiguration, nil, "no download target configured")
	}

	tw, th, err := Dimensions(img.Width(), img.Height(), opts.TargetWidth, ExportFallbackWidth)
	if err != nil {
		return err
	}
	res.Export = res.Preview
	if tw != res.Preview.Width || th != res.Preview.Height {
		if res.Export, err = Quantize(img, tw, th, opts.Ramp); err != nil {
			return err
		}
	}

	err = c.stage(ctx, "img2ascii.render", func(context.Context) error {
		var err error
		res.PNG, err = c.renderer.RenderPNG(res.Export, opts)
		return err
	})
	if err != nil {
		return err
	}
	c.system(fmt.Sprintf("PNG written, size: %d bytes", len(res.PNG)))

	return c.stage(ctx, "img2ascii.deliver", func(ctx context.Context) error {
		loc, err := c.trigger.Deliver(ctx, opts.OutputName, res.PNG)
		if err != nil {
			return newError(ErrRender, err, "failed to deliver %s", opts.OutputName)
		}
		res.Location = loc
		log.Info("exported %s (%d bytes) to %s", opts.OutputName, len(res.PNG), loc)
		c.system("PNG download triggered: " + loc)
		return nil
	})
}

// stage runs fn inside a child span.
func (c *Converter) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug("%s failed: %v", name, err)
		return err
	}
	return nil
}

func (c *Converter) system(line string) {
	c.sink.WriteLine(line, LineSystem)
}
