// Package record frames segment payloads as magic(2) | length(4, big-endian) | payload.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	MagicSize  = 2
	LengthSize = 4
	HeaderSize = MagicSize + LengthSize
)

// Magic starts every record. It is non-zero so zero-filled space never parses.
var Magic = [MagicSize]byte{0x57, 0x8A}

var (
	ErrMagicMismatch = errors.New("record magic mismatch")
	ErrTruncated     = errors.New("record truncated")
	ErrTooLarge      = errors.New("record payload too large")
)

// WriteSize returns the number of bytes data occupies once framed.
func WriteSize(data []byte) int64 {
	return HeaderSize + int64(len(data))
}

// Frame returns magic | length | data.
func Frame(data []byte) ([]byte, error) {
	if uint64(len(data)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	buf := make([]byte, HeaderSize+len(data))
	copy(buf[:MagicSize], Magic[:])
	binary.BigEndian.PutUint32(buf[MagicSize:HeaderSize], uint32(len(data)))
	copy(buf[HeaderSize:], data)
	return buf, nil
}

// TryParse validates the record starting at off in buf and returns its payload.
// The payload aliases buf.
func TryParse(buf []byte, off int64) ([]byte, error) {
	if off < 0 || off > int64(len(buf)) {
		return nil, fmt.Errorf("%w: offset %d outside buffer of %d bytes", ErrTruncated, off, len(buf))
	}
	rest := buf[off:]
	if len(rest) < HeaderSize {
		if len(rest) >= MagicSize && !hasMagic(rest) {
			return nil, ErrMagicMismatch
		}
		return nil, fmt.Errorf("%w: %d header bytes remaining at %d", ErrTruncated, len(rest), off)
	}
	if !hasMagic(rest) {
		return nil, ErrMagicMismatch
	}
	n := int64(binary.BigEndian.Uint32(rest[MagicSize:HeaderSize]))
	if int64(len(rest))-HeaderSize < n {
		return nil, fmt.Errorf("%w: need %d payload bytes at %d, have %d", ErrTruncated, n, off, int64(len(rest))-HeaderSize)
	}
	return rest[HeaderSize : HeaderSize+n], nil
}

// ReadAt validates the record starting at off in r, treating limit as the end of
// readable bytes, and returns a copy of its payload.
func ReadAt(r io.ReaderAt, off, limit int64) ([]byte, error) {
	if off < 0 || off > limit {
		return nil, fmt.Errorf("%w: offset %d outside limit %d", ErrTruncated, off, limit)
	}
	avail := limit - off
	if avail < MagicSize {
		return nil, fmt.Errorf("%w: %d header bytes remaining at %d", ErrTruncated, avail, off)
	}

	var hdr [HeaderSize]byte
	hn := int64(HeaderSize)
	if avail < hn {
		hn = avail
	}
	if err := readFull(r, hdr[:hn], off); err != nil {
		return nil, fmt.Errorf("read header at %d: %w", off, err)
	}
	if !hasMagic(hdr[:]) {
		return nil, ErrMagicMismatch
	}
	if avail < HeaderSize {
		return nil, fmt.Errorf("%w: %d header bytes remaining at %d", ErrTruncated, avail, off)
	}

	n := int64(binary.BigEndian.Uint32(hdr[MagicSize:]))
	if avail-HeaderSize < n {
		return nil, fmt.Errorf("%w: need %d payload bytes at %d, have %d", ErrTruncated, n, off, avail-HeaderSize)
	}
	data := make([]byte, n)
	if n > 0 {
		if err := readFull(r, data, off+HeaderSize); err != nil {
			return nil, fmt.Errorf("read payload at %d: %w", off+HeaderSize, err)
		}
	}
	return data, nil
}

// IsInvalid reports whether err marks a record that failed validation, as opposed
// to an I/O failure while reading it.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrMagicMismatch) || errors.Is(err, ErrTruncated)
}

func readFull(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func hasMagic(b []byte) bool {
	return b[0] == Magic[0] && b[1] == Magic[1]
}
