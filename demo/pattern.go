// Package demo generates test patterns and plays them on a strip.
package demo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is a 0xRRGGBB colour, written "#rrggbb" in config files.
type Color uint32

func (c Color) RGB() (r, g, b byte) {
	return byte(c >> 16), byte(c >> 8), byte(c)
}

func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 24)
	if err != nil {
		return fmt.Errorf("demo: bad colour %q", string(b))
	}
	*c = Color(v)
	return nil
}

// Pattern fills frame, made of pixels of width bytes, with its next
// animation step. The first three bytes of a pixel are red, green, blue;
// a fourth (white) byte is left at zero.
type Pattern interface {
	Fill(frame []byte, width int)
}

func set(frame []byte, width, i int, r, g, b byte) {
	p := frame[i*width : (i+1)*width]
	p[0], p[1], p[2] = r, g, b
	for j := 3; j < width; j++ {
		p[j] = 0
	}
}

// Sine is a travelling sine wave peaking at Peak per component.
type Sine struct {
	Peak   [3]float64
	Step   float64 // phase advance per frame
	Spread float64 // phase difference between neighbour pixels

	pos float64
}

func NewSine() *Sine {
	return &Sine{
		Peak:   [3]float64{0x148, 0x43, 0x197},
		Step:   0.02,
		Spread: 0.1,
	}
}

func (s *Sine) Fill(frame []byte, width int) {
	for i := 0; i < len(frame)/width; i++ {
		v := math.Sin(s.pos+s.Spread*float64(i))/2 + 0.5
		v *= v
		set(frame, width, i, clamp(s.Peak[0]*v), clamp(s.Peak[1]*v), clamp(s.Peak[2]*v))
	}
	s.pos += s.Step
}

func clamp(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 0xff:
		return 0xff
	}
	return byte(v)
}

// Bounce moves a single Fg pixel back and forth over a Bg background.
type Bounce struct {
	Fg, Bg Color

	pos, step int
}

func NewBounce() *Bounce {
	return &Bounce{Fg: 0x852421, Bg: 0x481684, step: 1}
}

// Position returns the index of the lit pixel in the next frame.
func (b *Bounce) Position() int { return b.pos }

func (b *Bounce) Fill(frame []byte, width int) {
	n := len(frame) / width
	if n == 0 {
		return
	}
	if b.pos >= n {
		b.pos, b.step = n-1, -1
	}
	fr, fg, fb := b.Fg.RGB()
	br, bg, bb := b.Bg.RGB()
	for i := 0; i < n; i++ {
		if i == b.pos {
			set(frame, width, i, fr, fg, fb)
		} else {
			set(frame, width, i, br, bg, bb)
		}
	}
	if b.step == 0 {
		b.step = 1
	}
	b.pos += b.step
	if b.pos >= n {
		b.step, b.pos = -1, max(n-2, 0)
	}
	if b.pos < 0 {
		b.step, b.pos = 1, min(1, n-1)
	}
}

// Solid paints every pixel with Color.
type Solid struct {
	Color Color
}

func (s *Solid) Fill(frame []byte, width int) {
	r, g, b := s.Color.RGB()
	for i := 0; i < len(frame)/width; i++ {
		set(frame, width, i, r, g, b)
	}
}

// NewPattern returns the pattern called name: sine, bounce or solid.
func NewPattern(name string, color Color) (Pattern, error) {
	switch strings.ToLower(name) {
	case "sine", "":
		return NewSine(), nil
	case "bounce":
		return NewBounce(), nil
	case "solid":
		return &Solid{Color: color}, nil
	}
	return nil, fmt.Errorf("demo: unknown pattern %q", name)
}
