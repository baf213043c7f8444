package led

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a packed 0xRRGGBB value as the ws281x driver expects it.
type Color uint32

const (
	Off   Color = 0x000000
	Red   Color = 0xFF0000
	Green Color = 0x00FF00
	Blue  Color = 0x0000FF
	White Color = 0xFFFFFF
)

// RGB builds a colour from its channels.
func RGB(r, g, b uint8) Color {
	return Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// Channels splits c into red, green and blue.
func (c Color) Channels() (r, g, b uint32) {
	return (uint32(c) >> 16) & 0xFF, (uint32(c) >> 8) & 0xFF, uint32(c) & 0xFF
}

func (c Color) String() string {
	return fmt.Sprintf("#%06X", uint32(c))
}

// ParseHexColor parses "#RRGGBB" or "RRGGBB". Anything else yields Off.
func ParseHexColor(s string) Color {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Off
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Off
	}
	return Color(v)
}

// Fade scales every channel by factor, clamped to [0,1].
func Fade(c Color, factor float64) Color {
	if factor <= 0 {
		return Off
	}
	if factor > 1 {
		factor = 1
	}
	r, g, b := c.Channels()
	return Color(uint32(float64(r)*factor)<<16 | uint32(float64(g)*factor)<<8 | uint32(float64(b)*factor))
}

// scaleWithFloor scales c by gain, keeping every lit channel at least floor so
// the driver's global brightness does not round it to zero.
func scaleWithFloor(c Color, gain float64, floor uint32) Color {
	if gain <= 0 {
		return Off
	}
	if gain > 1 {
		gain = 1
	}
	scale := func(v uint32) uint32 {
		if v == 0 {
			return 0
		}
		s := uint32(float64(v) * gain)
		if s == 0 {
			s = floor
		}
		if s > 255 {
			s = 255
		}
		return s
	}
	r, g, b := c.Channels()
	return Color(scale(r)<<16 | scale(g)<<8 | scale(b))
}

// minLSB is the smallest channel value that survives the driver's brightness
// scaling (value*brightness>>8).
func minLSB(brightness int) uint32 {
	if brightness <= 0 || brightness >= 255 {
		return 1
	}
	return uint32((256 + brightness - 1) / brightness)
}

// Wheel maps 0..255 onto a red-green-blue colour wheel.
func Wheel(pos int) Color {
	pos = 255 - (pos & 255)
	switch {
	case pos < 85:
		return Color(uint32(255-pos)<<16 | uint32(pos))
	case pos < 170:
		pos -= 85
		return Color(uint32(pos)<<8 | uint32(255-pos))
	default:
		pos -= 170
		return Color(uint32(pos)<<16 | uint32(255-pos)<<8)
	}
}
