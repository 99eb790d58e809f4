package pbx

import "hash"

// crcNibbleTable is the reflected CRC-32 (0xedb88320) table for 4-bit steps.
var crcNibbleTable = [16]uint32{
	0x00000000, 0x1db71064, 0x3b6e20c8, 0x26d930ac,
	0x76dc4190, 0x6b6b51f4, 0x4db26158, 0x5005713c,
	0xedb88320, 0xf00f9344, 0xd6d6a3e8, 0xcb61b38c,
	0x9b64c2b0, 0x86d3d2d4, 0xa00ae278, 0xbdbdf21c,
}

// ChecksumInit returns the state of an empty accumulator.
func ChecksumInit() uint32 {
	return 0xffffffff
}

// ChecksumUpdate folds p into state, low nibble of each byte first.
func ChecksumUpdate(state uint32, p []byte) uint32 {
	for _, b := range p {
		state = crcNibbleTable[(state^uint32(b))&0x0f] ^ (state >> 4)
		state = crcNibbleTable[(state^uint32(b>>4))&0x0f] ^ (state >> 4)
	}
	return state
}

// ChecksumFinalize turns an accumulator state into the value sent on the wire.
func ChecksumFinalize(state uint32) uint32 {
	return state ^ 0xffffffff
}

// Checksum computes the record checksum of p.
func Checksum(p []byte) uint32 {
	return ChecksumFinalize(ChecksumUpdate(ChecksumInit(), p))
}

// digest is a hash.Hash32 over the nibble accumulator.
type digest struct {
	state uint32
}

// NewChecksum returns a hash.Hash32 computing the record checksum.
// Sum appends the value in big-endian order, as hash/crc32 does; records
// carry it in native byte order.
func NewChecksum() hash.Hash32 {
	return &digest{state: ChecksumInit()}
}

func (d *digest) Write(p []byte) (int, error) {
	d.state = ChecksumUpdate(d.state, p)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return ChecksumFinalize(d.state) }

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *digest) Reset()         { d.state = ChecksumInit() }
func (d *digest) Size() int      { return ChecksumSize }
func (d *digest) BlockSize() int { return 1 }
