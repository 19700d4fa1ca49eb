package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"

	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Info describes a decoded raster.
type Info struct {
	Format   string
	Width    int
	Height   int
	Channels int
}

// Decode turns compressed image bytes into a pixel grid.
// Supports PNG, JPEG, GIF, BMP, TIFF and WebP.
func Decode(data []byte) (*RGBAImage, Info, error) {
	if len(data) == 0 {
		return nil, Info{}, fmt.Errorf("failed to decode image: empty input")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, Info{}, fmt.Errorf("failed to decode image: empty bounds %v", bounds)
	}

	info := Info{
		Format:   format,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: channels(img.ColorModel()),
	}
	return RGBAImageFromImage(img), info, nil
}

// DecodeConfig reports the dimensions of an encoded image without
// decoding its pixels.
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg, format, nil
}

// EncodePNG encodes img as PNG and returns the file bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// channels reports the number of channels the source raster carried.
// Paletted and unknown models are reported as RGBA.
func channels(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return 1
	case color.YCbCrModel:
		return 3
	}
	return 4
}
