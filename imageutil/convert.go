package imageutil

// Luminance returns the BT.601 luma of an 8-bit RGB sample:
// Y = 0.299*R + 0.587*G + 0.114*B.
//
// The arithmetic is float32 with every product explicitly rounded, which
// keeps the compiler from fusing multiply-adds; the quantizer depends on
// the result being identical on every platform.
func Luminance(c RGB) float32 {
	r := float32(0.299 * float32(c.R))
	g := float32(0.587 * float32(c.G))
	b := float32(0.114 * float32(c.B))
	return r + g + b
}
