package segment

import "errors"

var (
	ErrOpen          = errors.New("segment: open failed")
	ErrAlreadyOpen   = errors.New("segment: already open")
	ErrNotOpen       = errors.New("segment: not open")
	ErrSegmentFull   = errors.New("segment: not enough space left")
	ErrWriteRejected = errors.New("segment: write rejected by pool")
	ErrWriteFailed   = errors.New("segment: write failed")
	ErrCorrupted     = errors.New("segment: corrupted record")
)
