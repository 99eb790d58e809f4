package strip

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bosporos/pbxd/pbx"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownChannel = errors.New("strip: channel not configured")
	ErrBadOrder       = errors.New("strip: invalid colour order")
	ErrClosed         = errors.New("strip: closed")
)

type State int

const (
	Disconnected State = iota
	Connected
	WriteError
	Closed
)

// ChannelConfig describes one LED channel of the bridge.
type ChannelConfig struct {
	Number uint8  `toml:"number" yaml:"number"`
	Order  string `toml:"order" yaml:"order"`   // colour order on the wire, e.g. "GRB"
	Pixels int    `toml:"pixels" yaml:"pixels"` // strip length, 0 for no limit
}

type Config struct {
	Channels []ChannelConfig `toml:"channels" yaml:"channels"`
}

// NewConfig returns a single 240 pixel GRB channel.
func NewConfig() *Config {
	return &Config{
		Channels: []ChannelConfig{{Number: 0, Order: "GRB", Pixels: 240}},
	}
}

// ChannelSnapshot describes a configured channel and its last frame.
type ChannelSnapshot struct {
	Number    uint8
	Kind      pbx.Kind
	Placement string
	Width     int
	Length    int // configured pixel count
	Pixels    int // pixels sent by the last write
}

type Snapshot struct {
	Time     time.Time
	State    State
	Device   string
	Channels []ChannelSnapshot
	Stats    pbx.Stats
}

// Strip owns a pbx.Driver and the channels configured on it. It is safe
// for concurrent use.
type Strip struct {
	sync.Mutex
	driver   *pbx.Driver
	channels map[uint8]*pbx.Channel
	lengths  map[uint8]int
	numbers  []uint8
	frames   map[uint8][]byte
	state    State
}

// New configures the channels of cfg on top of driver. driver may be nil,
// in which case the strip starts Disconnected and frames are only kept
// until a Watcher attaches a driver.
func New(driver *pbx.Driver, cfg *Config) (*Strip, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	s := &Strip{
		driver:   driver,
		channels: make(map[uint8]*pbx.Channel),
		lengths:  make(map[uint8]int),
		frames:   make(map[uint8][]byte),
		state:    Disconnected,
	}
	for _, cc := range cfg.Channels {
		if _, ok := s.channels[cc.Number]; ok {
			return nil, fmt.Errorf("strip: channel %d configured twice", cc.Number)
		}
		if cc.Pixels < 0 || cc.Pixels > pbx.MaxPixels {
			return nil, fmt.Errorf("%w: channel %d has %d pixels", pbx.ErrOutOfRange, cc.Number, cc.Pixels)
		}
		kind, p, err := ParseOrder(cc.Order)
		if err != nil {
			return nil, err
		}
		ch, err := pbx.NewChannel(cc.Number, kind, p.Red, p.Green, p.Blue, p.White)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", cc.Number, err)
		}
		s.channels[cc.Number] = ch
		s.lengths[cc.Number] = cc.Pixels
		s.numbers = append(s.numbers, cc.Number)
	}
	sort.Slice(s.numbers, func(i, j int) bool { return s.numbers[i] < s.numbers[j] })
	if driver.Connected() {
		s.state = Connected
	}
	return s, nil
}

// Write sends pixels to channel n. The pixel count is the number of whole
// pixels in the buffer, capped to the configured length. The frame is kept
// for replay after a reconnection, even when sending fails.
func (s *Strip) Write(n uint8, pixels []byte) error {
	s.Lock()
	defer s.Unlock()
	return s.write(n, pixels)
}

func (s *Strip) write(n uint8, pixels []byte) error {
	if s.state == Closed {
		return ErrClosed
	}
	ch, ok := s.channels[n]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, n)
	}
	count := 0
	if w := ch.Width(); w > 0 {
		if len(pixels)%w != 0 {
			return fmt.Errorf("%w: %d bytes is not a multiple of %d", pbx.ErrInvalidArgument, len(pixels), w)
		}
		count = len(pixels) / w
		if l := s.lengths[n]; l > 0 && count > l {
			count = l
		}
		if count > pbx.MaxPixels {
			return fmt.Errorf("%w: %d pixels", pbx.ErrOutOfRange, count)
		}
		pixels = pixels[:count*w]
	}
	s.frames[n] = append(s.frames[n][:0], pixels...)
	if s.driver == nil {
		return s.checkErr(pbx.ErrNotConnected)
	}
	return s.checkErr(s.driver.WriteChannel(ch, pixels, count))
}

// Draw latches the written channels to the LEDs.
func (s *Strip) Draw() error {
	s.Lock()
	defer s.Unlock()
	if s.state == Closed {
		return ErrClosed
	}
	return s.commit()
}

func (s *Strip) commit() error {
	if s.driver == nil {
		return s.checkErr(pbx.ErrNotConnected)
	}
	return s.checkErr(s.driver.Commit())
}

// Show writes every frame of frames then draws.
func (s *Strip) Show(frames map[uint8][]byte) error {
	s.Lock()
	defer s.Unlock()
	nums := make([]int, 0, len(frames))
	for n := range frames {
		nums = append(nums, int(n))
	}
	sort.Ints(nums)
	for _, n := range nums {
		if err := s.write(uint8(n), frames[uint8(n)]); err != nil {
			return err
		}
	}
	return s.commit()
}

// checkErr moves the strip to WriteError on transmission failures.
func (s *Strip) checkErr(err error) error {
	switch {
	case err == nil:
		if s.state != Connected {
			log.Debug().Str("state", Connected.String()).Msg("strip: state changed")
		}
		s.state = Connected
	case errors.Is(err, pbx.ErrTransmissionFailed):
		if s.state != WriteError {
			log.Warn().Err(err).Str("dev", s.driver.Path()).Msg("strip: write failed")
		}
		s.state = WriteError
	case errors.Is(err, pbx.ErrNotConnected):
		s.state = Disconnected
	}
	return err
}

// attach replaces the driver, replays the last frame of every channel and
// draws. The previous driver is closed.
func (s *Strip) attach(d *pbx.Driver) error {
	if s.state == Closed {
		d.Close()
		return ErrClosed
	}
	if s.driver.Connected() {
		if err := s.driver.Close(); err != nil {
			log.Debug().Err(err).Msg("strip: closing previous driver")
		}
	}
	s.driver = d
	for _, n := range s.numbers {
		frame, ok := s.frames[n]
		if !ok {
			continue
		}
		ch := s.channels[n]
		count := 0
		if w := ch.Width(); w > 0 {
			count = len(frame) / w
		}
		if err := s.checkErr(d.WriteChannel(ch, frame, count)); err != nil {
			return err
		}
	}
	return s.commit()
}

func (s *Strip) State() State {
	s.Lock()
	defer s.Unlock()
	return s.state
}

// Snapshot retrieves the state of s at a given time.
func (s *Strip) Snapshot() Snapshot {
	s.Lock()
	defer s.Unlock()
	sn := Snapshot{
		Time:     time.Now(),
		State:    s.state,
		Channels: s.channelSnapshots(),
	}
	if s.driver != nil {
		sn.Device = s.driver.Path()
		sn.Stats = s.driver.Stats()
	}
	return sn
}

// Channels describes the configured channels in ascending order.
func (s *Strip) Channels() []ChannelSnapshot {
	s.Lock()
	defer s.Unlock()
	return s.channelSnapshots()
}

func (s *Strip) channelSnapshots() []ChannelSnapshot {
	out := make([]ChannelSnapshot, 0, len(s.numbers))
	for _, n := range s.numbers {
		ch := s.channels[n]
		out = append(out, ChannelSnapshot{
			Number:    n,
			Kind:      ch.Kind(),
			Placement: ch.Placement().String(),
			Width:     ch.Width(),
			Length:    s.lengths[n],
			Pixels:    ch.Pixels(),
		})
	}
	return out
}

// Frame returns a copy of the last frame written to channel n.
func (s *Strip) Frame(n uint8) ([]byte, bool) {
	s.Lock()
	defer s.Unlock()
	f, ok := s.frames[n]
	return append([]byte(nil), f...), ok
}

// Close closes the driver. The strip can't be used afterwards.
func (s *Strip) Close() error {
	s.Lock()
	defer s.Unlock()
	if s.state == Closed {
		return ErrClosed
	}
	s.state = Closed
	if s.driver.Connected() {
		return s.driver.Close()
	}
	return nil
}
