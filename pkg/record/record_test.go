package record_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/downfa11-org/segmentlog/pkg/record"
)

func TestFrameLayout(t *testing.T) {
	payload := []byte("hello")
	buf, err := record.Frame(payload)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}

	want := []byte{0x57, 0x8A, 0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o'}
	if !bytes.Equal(buf, want) {
		t.Fatalf("frame = %x; want %x", buf, want)
	}
	if got := record.WriteSize(payload); got != int64(len(want)) {
		t.Errorf("WriteSize = %d; want %d", got, len(want))
	}
}

func TestWriteSize(t *testing.T) {
	tests := []struct {
		size int
		want int64
	}{
		{0, 6},
		{20, 26},
		{32, 38},
	}
	for _, tt := range tests {
		if got := record.WriteSize(make([]byte, tt.size)); got != tt.want {
			t.Errorf("WriteSize(%d bytes) = %d; want %d", tt.size, got, tt.want)
		}
	}
}

func TestTryParse(t *testing.T) {
	first, _ := record.Frame([]byte("first"))
	second, _ := record.Frame([]byte{})
	buf := append(append([]byte{}, first...), second...)

	got, err := record.TryParse(buf, 0)
	if err != nil || string(got) != "first" {
		t.Fatalf("TryParse(0) = %q, %v", got, err)
	}

	got, err = record.TryParse(buf, int64(len(first)))
	if err != nil || len(got) != 0 {
		t.Fatalf("TryParse(empty record) = %q, %v", got, err)
	}

	if _, err := record.TryParse(buf, int64(len(buf))); !errors.Is(err, record.ErrTruncated) {
		t.Errorf("TryParse at end: expected ErrTruncated, got %v", err)
	}
}

func TestTryParseInvalid(t *testing.T) {
	framed, _ := record.Frame([]byte("payload"))

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"bad first magic byte", append([]byte{0x00}, framed[1:]...), record.ErrMagicMismatch},
		{"bad second magic byte", append([]byte{framed[0], 0xFF}, framed[2:]...), record.ErrMagicMismatch},
		{"zeroed space", make([]byte, 32), record.ErrMagicMismatch},
		{"header cut", framed[:4], record.ErrTruncated},
		{"payload cut", framed[:len(framed)-1], record.ErrTruncated},
		{"one byte", framed[:1], record.ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := record.TryParse(tt.buf, 0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !record.IsInvalid(err) {
				t.Fatalf("IsInvalid(%v) = false", err)
			}
		})
	}
}

func TestReadAtRespectsLimit(t *testing.T) {
	a, _ := record.Frame([]byte("aaaa"))
	b, _ := record.Frame([]byte("bbbbbbbb"))
	buf := append(append([]byte{}, a...), b...)
	r := bytes.NewReader(buf)

	got, err := record.ReadAt(r, 0, int64(len(buf)))
	if err != nil || string(got) != "aaaa" {
		t.Fatalf("ReadAt(0) = %q, %v", got, err)
	}

	got, err = record.ReadAt(r, int64(len(a)), int64(len(buf)))
	if err != nil || string(got) != "bbbbbbbb" {
		t.Fatalf("ReadAt(second) = %q, %v", got, err)
	}

	// bytes past the limit exist physically but must not be trusted
	if _, err := record.ReadAt(r, int64(len(a)), int64(len(buf))-1); !errors.Is(err, record.ErrTruncated) {
		t.Errorf("expected ErrTruncated under limit, got %v", err)
	}
	if _, err := record.ReadAt(r, int64(len(a)), int64(len(a))+3); !errors.Is(err, record.ErrTruncated) {
		t.Errorf("expected ErrTruncated for partial header, got %v", err)
	}
	if _, err := record.ReadAt(r, 1, int64(len(buf))); !errors.Is(err, record.ErrMagicMismatch) {
		t.Errorf("expected ErrMagicMismatch at misaligned offset, got %v", err)
	}
}

func TestReadAtCopiesPayload(t *testing.T) {
	framed, _ := record.Frame([]byte("copy"))
	got, err := record.ReadAt(bytes.NewReader(framed), 0, int64(len(framed)))
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	framed[record.HeaderSize] = 'X'
	if string(got) != "copy" {
		t.Fatalf("payload aliases source buffer: %q", got)
	}
}
