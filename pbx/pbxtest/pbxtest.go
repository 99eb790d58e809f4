// Package pbxtest provides an in-memory transport and a stepping clock for
// testing code built on pbx.Driver.
package pbxtest

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("pbxtest: port closed")

// Port records every write. It implements io.WriteCloser.
type Port struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes [][]byte
	closed int

	// FailWrites makes Write return Err, or a generic error when Err is
	// nil, without recording anything.
	FailWrites bool
	Err        error
	// Short caps the byte count accepted by each write when positive.
	Short int
	// OnWrite is called with every accepted write.
	OnWrite func(p []byte)
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed > 0 {
		return 0, ErrClosed
	}
	if p.FailWrites {
		if p.Err != nil {
			return 0, p.Err
		}
		return 0, errors.New("pbxtest: write failed")
	}
	n := len(b)
	if p.Short > 0 && p.Short < n {
		n = p.Short
	}
	cp := make([]byte, n)
	copy(cp, b[:n])
	p.buf.Write(cp)
	p.writes = append(p.writes, cp)
	if p.OnWrite != nil {
		p.OnWrite(cp)
	}
	return n, nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

// Bytes returns everything written so far.
func (p *Port) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.buf.Bytes()...)
}

// Writes returns a copy of each write call's bytes.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Closed returns how many times Close was called.
func (p *Port) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Clock is a manual clock; each Yield advances it by Step.
type Clock struct {
	mu     sync.Mutex
	now    time.Duration
	Step   time.Duration
	yields int
}

func NewClock(step time.Duration) *Clock {
	return &Clock{Step: step}
}

func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Yield() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.Step
	c.yields++
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Yields returns how many times Yield was called.
func (c *Clock) Yields() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.yields
}
