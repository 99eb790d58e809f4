package pbx

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the pixel format of a channel. Its value is the byte sent in the
// channel info block.
type Kind byte

const (
	Disabled Kind = 0
	RGB      Kind = 3
	RGBW     Kind = 4
)

// Width returns the number of bytes per pixel, and false for unknown kinds.
func (k Kind) Width() (int, bool) {
	switch k {
	case Disabled:
		return 0, true
	case RGB:
		return 3, true
	case RGBW:
		return 4, true
	}
	return 0, false
}

func (k Kind) String() string {
	switch k {
	case Disabled:
		return "disabled"
	case RGB:
		return "rgb"
	case RGBW:
		return "rgbw"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := k.Width(); !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText accepts a kind name (case-insensitive) or its wire value.
func (k *Kind) UnmarshalText(b []byte) error {
	str := strings.ToLower(strings.TrimSpace(string(b)))
	switch str {
	case "disabled", "":
		*k = Disabled
		return nil
	case "rgb":
		*k = RGB
		return nil
	case "rgbw":
		*k = RGBW
		return nil
	}
	i, err := strconv.ParseUint(str, 10, 8)
	if err == nil {
		if _, ok := Kind(i).Width(); ok {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnsupported, string(b))
}

// Placement holds the byte offset of each colour component inside a
// pixel. Every offset must fit in two bits.
type Placement struct {
	Red, Green, Blue, White uint8
}

// Valid reports whether every offset is within 0..3.
func (p Placement) Valid() bool {
	return (p.Red|p.Green|p.Blue|p.White)&0xfc == 0
}

// Pack returns the placement byte: red in bits 0-1, green 2-3, blue 4-5,
// white 6-7.
func (p Placement) Pack() byte {
	return p.Red&3 | (p.Green&3)<<2 | (p.Blue&3)<<4 | (p.White&3)<<6
}

// UnpackPlacement is the inverse of Placement.Pack.
func UnpackPlacement(b byte) Placement {
	return Placement{
		Red:   b & 3,
		Green: (b >> 2) & 3,
		Blue:  (b >> 4) & 3,
		White: (b >> 6) & 3,
	}
}

func (p Placement) String() string {
	return fmt.Sprintf("r%d g%d b%d w%d", p.Red, p.Green, p.Blue, p.White)
}

// Channel describes one addressable LED channel on the bridge.
// The zero value is a disabled channel 0.
type Channel struct {
	number    uint8
	kind      Kind
	width     int
	placement Placement
	pixels    int
}

// NewChannel returns a configured channel, see Channel.Configure.
func NewChannel(number uint8, kind Kind, red, green, blue, white uint8) (*Channel, error) {
	c := new(Channel)
	if err := c.Configure(number, kind, red, green, blue, white); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure sets the channel number, kind and component placement, and
// resets the pixel count. Nothing is changed when an error is returned.
func (c *Channel) Configure(number uint8, kind Kind, red, green, blue, white uint8) error {
	if c == nil {
		return ErrInvalidArgument
	}
	width, ok := kind.Width()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnsupported, kind)
	}
	p := Placement{Red: red, Green: green, Blue: blue, White: white}
	if !p.Valid() {
		return fmt.Errorf("%w: placement %s", ErrOutOfRange, p)
	}
	if number == Broadcast {
		return fmt.Errorf("%w: channel 0x%02x is reserved", ErrOutOfRange, number)
	}
	c.number = number
	c.kind = kind
	c.width = width
	c.placement = p
	c.pixels = 0
	return nil
}

// SetKind changes the pixel format and the derived pixel width.
func (c *Channel) SetKind(kind Kind) error {
	if c == nil {
		return ErrInvalidArgument
	}
	width, ok := kind.Width()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnsupported, kind)
	}
	c.kind = kind
	c.width = width
	return nil
}

func (c *Channel) Number() uint8        { return c.number }
func (c *Channel) Kind() Kind           { return c.kind }
func (c *Channel) Width() int           { return c.width }
func (c *Channel) Placement() Placement { return c.placement }

// Pixels returns the pixel count of the last write.
func (c *Channel) Pixels() int { return c.pixels }

// info returns the 4-byte channel info block for n pixels.
func (c *Channel) info(n int) [ChannelInfoSize]byte {
	var b [ChannelInfoSize]byte
	b[0] = byte(c.kind)
	b[1] = c.placement.Pack()
	binary.NativeEndian.PutUint16(b[2:], uint16(n))
	return b
}
