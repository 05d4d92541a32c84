package canvas

import "image/color"

// Color is stored as ARGB (0xAARRGGBB).
type Color uint32

// RGBA constructs a Color from red, green, blue, alpha bytes.
func RGBA(r, g, b, a uint8) Color {
	return Color(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGB constructs an opaque Color from red, green, blue bytes.
func RGB(r, g, b uint8) Color {
	return RGBA(r, g, b, 0xFF)
}

// NRGBA converts the color for use with the image packages.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: uint8(c >> 24)}
}

// Common colors.
var (
	ColorTransparent = Color(0x00000000)
	ColorBlack       = Color(0xFF000000)
	ColorWhite       = Color(0xFFFFFFFF)
	ColorRed         = Color(0xFFFF0000)
	ColorGreen       = Color(0xFF00FF00)
	ColorBlue        = Color(0xFF0000FF)
)

// BrushStyle selects how a shape is painted.
type BrushStyle int

const (
	// BrushFill fills the interior.
	BrushFill BrushStyle = iota
	// BrushStroke draws the outline.
	BrushStroke
)

// Brush describes how a primitive is painted.
type Brush struct {
	Color       Color
	Style       BrushStyle
	StrokeWidth float64
}

// SolidBrush returns a fill brush of the given color.
func SolidBrush(c Color) Brush {
	return Brush{Color: c}
}
