package demo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rkjdid/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bosporos/pbxd/pbx"
	"github.com/bosporos/pbxd/pbx/pbxtest"
	"github.com/bosporos/pbxd/strip"
)

func TestColor_Text(t *testing.T) {
	var c Color
	require.NoError(t, c.UnmarshalText([]byte("#852421")))
	assert.Equal(t, Color(0x852421), c)
	require.NoError(t, c.UnmarshalText([]byte("0x481684")))
	assert.Equal(t, Color(0x481684), c)
	assert.Error(t, c.UnmarshalText([]byte("#1000000")))
	assert.Error(t, c.UnmarshalText([]byte("red")))

	b, err := Color(0x0000ff).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "#0000ff", string(b))
}

func TestSine(t *testing.T) {
	s := NewSine()
	frame := make([]byte, 240*3)
	s.Fill(frame, 3)

	// sin(0) = 0 gives a quarter of each peak on the first pixel
	assert.Equal(t, []byte{0x148 / 4, 0x43 / 4, 0x197 / 4}, frame[:3])
	for i := 0; i < 240; i++ {
		assert.GreaterOrEqual(t, frame[i*3+2], frame[i*3+1], "blue peak is highest")
	}

	// the red and blue peaks exceed a byte and saturate
	var saturated bool
	for i := 0; i < 240; i++ {
		if frame[i*3+2] == 0xff {
			saturated = true
		}
	}
	assert.True(t, saturated)

	first := append([]byte(nil), frame...)
	s.Fill(frame, 3)
	assert.NotEqual(t, first, frame, "wave moves between frames")
}

func TestSine_RGBW(t *testing.T) {
	frame := make([]byte, 10*4)
	for i := range frame {
		frame[i] = 0xaa
	}
	NewSine().Fill(frame, 4)
	for i := 0; i < 10; i++ {
		assert.Zero(t, frame[i*4+3])
	}
}

func TestBounce(t *testing.T) {
	const n = 5
	b := NewBounce()
	frame := make([]byte, n*3)

	var positions []int
	for i := 0; i < 12; i++ {
		positions = append(positions, b.Position())
		b.Fill(frame, 3)

		lit := 0
		for j := 0; j < n; j++ {
			px := frame[j*3 : j*3+3]
			if j == positions[i] {
				assert.Equal(t, []byte{0x85, 0x24, 0x21}, px)
				lit++
			} else {
				assert.Equal(t, []byte{0x48, 0x16, 0x84}, px)
			}
		}
		assert.Equal(t, 1, lit)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 3, 2, 1, 0, 1, 2, 3}, positions)
}

func TestSolid(t *testing.T) {
	frame := make([]byte, 4*3)
	(&Solid{Color: 0x102030}).Fill(frame, 3)
	assert.Equal(t, []byte{0x10, 0x20, 0x30, 0x10, 0x20, 0x30, 0x10, 0x20, 0x30, 0x10, 0x20, 0x30}, frame)
}

func TestNewPattern(t *testing.T) {
	for _, name := range []string{"sine", "Bounce", "solid", ""} {
		p, err := NewPattern(name, 0)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}
	_, err := NewPattern("rainbow", 0)
	assert.Error(t, err)
}

// countingPort counts commit records.
type countingPort struct {
	pbxtest.Port
	mu      sync.Mutex
	commits int
}

func TestRun(t *testing.T) {
	port := new(countingPort)
	port.OnWrite = func(p []byte) {
		if len(p) == pbx.HeaderSize+pbx.ChecksumSize {
			port.mu.Lock()
			port.commits++
			port.mu.Unlock()
		}
	}
	s, err := strip.New(pbx.NewDriver(port, nil), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- Run(ctx, s, Config{Pattern: "bounce", Pixels: 10, Interval: util.Duration(time.Millisecond)})
	}()

	require.Eventually(t, func() bool {
		port.mu.Lock()
		defer port.mu.Unlock()
		return port.commits >= 3
	}, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	frame, ok := s.Frame(0)
	require.True(t, ok)
	assert.Len(t, frame, 30)
}

func TestRun_BadConfig(t *testing.T) {
	s, err := strip.New(nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, Run(ctx, s, Config{Channel: 3, Pixels: 10}), strip.ErrUnknownChannel)
	assert.ErrorIs(t, Run(ctx, s, Config{Pixels: 0}), pbx.ErrOutOfRange)
	assert.Error(t, Run(ctx, s, Config{Pattern: "rainbow", Pixels: 10}))
}
