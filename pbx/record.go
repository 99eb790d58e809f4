package pbx

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Records are laid out as
//
//	magic(4) | channel(1) | kind(1) | [channel info(4) | payload] | checksum(4)
//
// Multi-byte fields use the host's native byte order. The checksum covers
// every preceding byte of the record.

// recordWriter appends record bytes to buf, folding each into the checksum.
type recordWriter struct {
	buf []byte
	sum uint32
}

func newRecordWriter(dst []byte) *recordWriter {
	return &recordWriter{buf: dst, sum: ChecksumInit()}
}

func (w *recordWriter) write(p []byte) {
	w.buf = append(w.buf, p...)
	w.sum = ChecksumUpdate(w.sum, p)
}

func (w *recordWriter) header(channel byte, kind RecordKind) {
	w.write([]byte{Magic[0], Magic[1], Magic[2], Magic[3], channel, byte(kind)})
}

func (w *recordWriter) finish() []byte {
	return binary.NativeEndian.AppendUint32(w.buf, ChecksumFinalize(w.sum))
}

// AppendChannelWrite appends a ChannelWrite record carrying n pixels of ch
// taken from the start of pixels, and records n as the channel's pixel count.
func AppendChannelWrite(dst []byte, ch *Channel, pixels []byte, n int) ([]byte, error) {
	if ch == nil {
		return dst, ErrInvalidArgument
	}
	if n < 0 || n > MaxPixels {
		return dst, fmt.Errorf("%w: %d pixels", ErrOutOfRange, n)
	}
	size := n * ch.width
	if len(pixels) < size {
		return dst, fmt.Errorf("%w: %d bytes for %d %s pixels", ErrInvalidArgument, len(pixels), n, ch.kind)
	}

	w := newRecordWriter(dst)
	w.header(ch.number, RecordChannelWrite)
	ch.pixels = n
	info := ch.info(n)
	w.write(info[:])
	w.write(pixels[:size])
	return w.finish(), nil
}

// EncodeChannelWrite returns a ChannelWrite record, see AppendChannelWrite.
func EncodeChannelWrite(ch *Channel, pixels []byte, n int) ([]byte, error) {
	if ch == nil {
		return nil, ErrInvalidArgument
	}
	return AppendChannelWrite(make([]byte, 0, HeaderSize+ChannelInfoSize+n*ch.width+ChecksumSize), ch, pixels, n)
}

// AppendCommit appends a broadcast CommitDraw record.
func AppendCommit(dst []byte) []byte {
	w := newRecordWriter(dst)
	w.header(Broadcast, RecordCommit)
	return w.finish()
}

// EncodeCommit returns a broadcast CommitDraw record.
func EncodeCommit() []byte {
	return AppendCommit(make([]byte, 0, HeaderSize+ChecksumSize))
}

// ChannelInfo is the decoded channel info block of a ChannelWrite record.
type ChannelInfo struct {
	Kind      Kind
	Placement Placement
	Pixels    int
}

// Record is a decoded record.
type Record struct {
	Channel  byte
	Kind     RecordKind
	Info     ChannelInfo // ChannelWrite only
	Payload  []byte
	Checksum uint32
}

func (r Record) String() string {
	if r.Kind == RecordChannelWrite {
		return fmt.Sprintf("Record{%s ch:%d %s [%s] px:%d sum:%08x}",
			r.Kind, r.Channel, r.Info.Kind, r.Info.Placement, r.Info.Pixels, r.Checksum)
	}
	return fmt.Sprintf("Record{%s ch:0x%02x sum:%08x}", r.Kind, r.Channel, r.Checksum)
}

// ReadRecord reads one record from r and validates its checksum. On
// ErrChecksumMismatch the decoded record is returned along with the error.
// The record must start at the first byte of r; RecordReader resyncs on
// the magic instead.
func ReadRecord(r io.Reader) (rec Record, err error) {
	sum := ChecksumInit()
	read := func(p []byte) error {
		if _, err := io.ReadFull(r, p); err != nil {
			return err
		}
		sum = ChecksumUpdate(sum, p)
		return nil
	}

	var hdr [HeaderSize]byte
	if err = read(hdr[:]); err != nil {
		return rec, err
	}
	if !bytes.Equal(hdr[:4], Magic[:]) {
		return rec, fmt.Errorf("%w: % x", ErrBadMagic, hdr[:4])
	}
	rec.Channel = hdr[4]
	rec.Kind = RecordKind(hdr[5])

	switch rec.Kind {
	case RecordChannelWrite:
		var info [ChannelInfoSize]byte
		if err = read(info[:]); err != nil {
			return rec, noEOF(err)
		}
		rec.Info = ChannelInfo{
			Kind:      Kind(info[0]),
			Placement: UnpackPlacement(info[1]),
			Pixels:    int(binary.NativeEndian.Uint16(info[2:])),
		}
		width, ok := rec.Info.Kind.Width()
		if !ok {
			return rec, fmt.Errorf("%w: %d", ErrUnsupported, info[0])
		}
		rec.Payload = make([]byte, rec.Info.Pixels*width)
		if err = read(rec.Payload); err != nil {
			return rec, noEOF(err)
		}
	case RecordCommit:
	default:
		return rec, fmt.Errorf("%w: %d", ErrUnknownRecord, hdr[5])
	}

	var tail [ChecksumSize]byte
	if _, err = io.ReadFull(r, tail[:]); err != nil {
		return rec, noEOF(err)
	}
	rec.Checksum = binary.NativeEndian.Uint32(tail[:])
	if want := ChecksumFinalize(sum); rec.Checksum != want {
		return rec, fmt.Errorf("%w: got %08x, want %08x", ErrChecksumMismatch, rec.Checksum, want)
	}
	return rec, nil
}

// DecodeRecord decodes the record at the start of b and returns the number
// of bytes it occupied.
func DecodeRecord(b []byte) (Record, int, error) {
	r := bytes.NewReader(b)
	rec, err := ReadRecord(r)
	return rec, len(b) - r.Len(), err
}

// RecordReader reads consecutive records from a byte stream that may hold
// noise or torn records between them.
type RecordReader struct {
	r       *bufio.Reader
	skipped int
}

func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: bufio.NewReader(r)}
}

// Skipped returns the number of bytes discarded while looking for a magic.
func (rr *RecordReader) Skipped() int {
	return rr.skipped
}

// Next skips input up to the next magic and reads the record starting
// there. It returns io.EOF once the stream ends between records.
func (rr *RecordReader) Next() (Record, error) {
	if err := rr.sync(); err != nil {
		return Record{}, err
	}
	return ReadRecord(rr.r)
}

// sync discards bytes one at a time until the buffered input starts with
// Magic.
func (rr *RecordReader) sync() error {
	for {
		b, err := rr.r.Peek(len(Magic))
		if err == nil && bytes.Equal(b, Magic[:]) {
			return nil
		}
		if err != nil {
			if err != io.EOF || len(b) == 0 {
				return err
			}
			rr.skipped += len(b)
			rr.r.Discard(len(b))
			if bytes.HasPrefix(Magic[:], b) {
				return io.ErrUnexpectedEOF
			}
			return io.EOF
		}
		rr.r.Discard(1)
		rr.skipped++
	}
}

// noEOF reports a record cut after its header as truncated.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
