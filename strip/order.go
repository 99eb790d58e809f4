package strip

import (
	"fmt"
	"strings"

	"github.com/bosporos/pbxd/pbx"
)

// ParseOrder converts an LED colour order such as "GRB" or "RGBW" into a
// kind and the placement of each component in the pixel. "", "off" and
// "disabled" select a disabled channel.
func ParseOrder(order string) (pbx.Kind, pbx.Placement, error) {
	s := strings.ToUpper(strings.TrimSpace(order))
	switch s {
	case "", "OFF", "DISABLED":
		return pbx.Disabled, pbx.Placement{}, nil
	}

	var (
		p    pbx.Placement
		seen = map[rune]bool{}
	)
	for i, c := range s {
		if seen[c] {
			return 0, p, fmt.Errorf("%w: %q repeats %c", ErrBadOrder, order, c)
		}
		seen[c] = true
		switch c {
		case 'R':
			p.Red = uint8(i)
		case 'G':
			p.Green = uint8(i)
		case 'B':
			p.Blue = uint8(i)
		case 'W':
			p.White = uint8(i)
		default:
			return 0, p, fmt.Errorf("%w: %q", ErrBadOrder, order)
		}
	}

	switch {
	case len(s) == 3 && !seen['W']:
		return pbx.RGB, p, nil
	case len(s) == 4:
		return pbx.RGBW, p, nil
	}
	return 0, p, fmt.Errorf("%w: %q", ErrBadOrder, order)
}
