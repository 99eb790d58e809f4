// Package pbx encodes WS2812 channel writes and draw commands for the PBX
// serial bridge and paces them onto the line.
package pbx

import (
	"strconv"
	"time"
)

// Magic is the tag opening every record.
var Magic = [4]byte{'U', 'P', 'X', 'L'}

// BaudRate is the fixed line speed of the bridge link.
const BaudRate = 2000000

// Broadcast addresses every channel; it is only used by global records.
const Broadcast byte = 0xff

// RecordKind identifies what follows a record header.
type RecordKind byte

const (
	RecordChannelWrite RecordKind = 0x01 + iota
	RecordCommit
)

const (
	HeaderSize      = 6 // magic(4) + channel(1) + kind(1)
	ChannelInfoSize = 4 // kind(1) + placement(1) + pixels(2)
	ChecksumSize    = 4

	// MaxPixels is bounded by the 16-bit pixel count of the channel info block.
	MaxPixels = 0xffff
)

// MinCommitInterval is the shortest gap the downstream LEDs accept
// between two latch pulses.
const MinCommitInterval = 310 * time.Microsecond

func (k RecordKind) String() string {
	switch k {
	case RecordChannelWrite:
		return "ChannelWrite"
	case RecordCommit:
		return "CommitDraw"
	}
	return "RecordKind(" + strconv.Itoa(int(k)) + ")"
}
