package pbx

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Stats counts what a Driver has sent.
type Stats struct {
	Records    uint64
	Bytes      uint64
	Commits    uint64
	Failures   uint64
	LastCommit time.Duration // Clock time of the last commit
}

// Driver is a session with the bridge: it owns the transport, encodes
// records onto it and paces commits.
//
// A Driver is not safe for concurrent use; callers sharing one must
// serialise access.
type Driver struct {
	port       io.WriteCloser // nil once closed
	clock      Clock
	lastCommit time.Duration
	buf        []byte
	stats      Stats
}

// Open opens the serial device at path at BaudRate.
func Open(path string) (*Driver, error) {
	return OpenWith(path, DefaultSerialConfig, false)
}

// OpenWith opens the serial device at path with mode. When drain is set
// every record is flushed to the line before the call returns.
func OpenWith(path string, mode *serial.Mode, drain bool) (*Driver, error) {
	port, config, err := OpenPortName(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoDriver, path, err)
	}
	conn := NewSerial(port, config, path)
	conn.Drain = drain
	return NewDriver(conn, nil), nil
}

// NewDriver returns a Driver writing to port. A nil clock selects
// SystemClock.
func NewDriver(port io.WriteCloser, clock Clock) *Driver {
	if clock == nil {
		clock = SystemClock()
	}
	return &Driver{
		port:       port,
		clock:      clock,
		lastCommit: clock.Now(),
	}
}

func (d *Driver) check() error {
	if d == nil {
		return ErrInvalidArgument
	}
	if d.port == nil {
		return ErrNotConnected
	}
	return nil
}

// WriteChannel sends n pixels of ch read from pixels.
func (d *Driver) WriteChannel(ch *Channel, pixels []byte, n int) error {
	if err := d.check(); err != nil {
		return err
	}
	rec, err := AppendChannelWrite(d.buf[:0], ch, pixels, n)
	if err != nil {
		return err
	}
	d.buf = rec
	return d.transmit(rec)
}

// Commit tells the bridge to latch the written channels to the LEDs. It
// spins until MinCommitInterval has elapsed since the previous commit.
func (d *Driver) Commit() error {
	if err := d.check(); err != nil {
		return err
	}
	SpinUntil(d.clock, d.lastCommit+MinCommitInterval)
	d.buf = AppendCommit(d.buf[:0])
	err := d.transmit(d.buf)
	d.lastCommit = d.clock.Now()
	if err == nil {
		d.stats.Commits++
		d.stats.LastCommit = d.lastCommit
	}
	return err
}

// Close closes the transport. Any later call fails with ErrNotConnected.
func (d *Driver) Close() error {
	if err := d.check(); err != nil {
		return err
	}
	err := d.port.Close()
	d.port = nil
	return err
}

// Connected reports whether the transport is open.
func (d *Driver) Connected() bool {
	return d != nil && d.port != nil
}

// Path returns the device path for serial transports.
func (d *Driver) Path() string {
	if d == nil {
		return ""
	}
	if sc, ok := d.port.(*SerialConnection); ok {
		return sc.Path()
	}
	return ""
}

func (d *Driver) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return d.stats
}

func (d *Driver) transmit(rec []byte) error {
	n, err := d.port.Write(rec)
	if err == nil && n < len(rec) {
		err = io.ErrShortWrite
	}
	d.stats.Bytes += uint64(n)
	if err != nil {
		d.stats.Failures++
		return fmt.Errorf("%w: %w", ErrTransmissionFailed, err)
	}
	d.stats.Records++
	return nil
}
