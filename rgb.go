package img2ascii

import (
	"strings"

	"github.com/rekav/img2ascii/imageutil"
)

// RGB is an 8-bit color triple.
type RGB = imageutil.RGB

var (
	Black  = RGB{R: 0, G: 0, B: 0}
	White  = RGB{R: 255, G: 255, B: 255}
	Red    = RGB{R: 255, G: 0, B: 0}
	Green  = RGB{R: 0, G: 255, B: 0}
	Blue   = RGB{R: 0, G: 0, B: 255}
	Pink   = RGB{R: 255, G: 192, B: 203}
	Purple = RGB{R: 128, G: 0, B: 128}
)

var namedColors = map[string]RGB{
	"black":  Black,
	"white":  White,
	"red":    Red,
	"green":  Green,
	"blue":   Blue,
	"pink":   Pink,
	"purple": Purple,
}

// ParseColor maps a color name to its RGB value. Names are matched
// exactly; anything unrecognized is white.
func ParseColor(name string) RGB {
	if c, ok := namedColors[name]; ok {
		return c
	}
	return White
}

// ColorNames lists the recognized color names in a stable order.
func ColorNames() []string {
	return []string{"black", "white", "red", "green", "blue", "pink", "purple"}
}

// colorName returns the palette name of c, or its hex form.
func colorName(c RGB) string {
	for _, name := range ColorNames() {
		if namedColors[name] == c {
			return name
		}
	}
	var b strings.Builder
	const hex = "0123456789abcdef"
	b.WriteByte('#')
	for _, v := range []uint8{c.R, c.G, c.B} {
		b.WriteByte(hex[v>>4])
		b.WriteByte(hex[v&0xF])
	}
	return b.String()
}
