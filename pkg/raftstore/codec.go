package raftstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/downfa11-org/segmentlog/util"
	"github.com/hashicorp/raft"
)

const (
	kindLog         byte = 1
	kindDeleteRange byte = 2
)

// log entry: kind | index | term | type | compression | appendedAt | len(data) | data | len(ext) | ext
const logHeaderSize = 1 + 8 + 8 + 1 + 1 + 8 + 4

const deleteRangeSize = 1 + 8 + 8

var ErrInvalidEntry = errors.New("raftstore: invalid entry")

// encodeLog stores Data raw when it is empty or the codec does not shrink it;
// the compression byte records which form was written.
func encodeLog(l *raft.Log, c util.Compression) ([]byte, error) {
	data := l.Data
	if len(l.Data) == 0 {
		c = util.CompressionNone
	} else if c != util.CompressionNone {
		packed, err := util.Compress(l.Data, c)
		if err != nil {
			return nil, fmt.Errorf("compress log %d: %w", l.Index, err)
		}
		if len(packed) < len(l.Data) {
			data = packed
		} else {
			c = util.CompressionNone
		}
	}

	buf := make([]byte, logHeaderSize+len(data)+4+len(l.Extensions))
	buf[0] = kindLog
	binary.BigEndian.PutUint64(buf[1:9], l.Index)
	binary.BigEndian.PutUint64(buf[9:17], l.Term)
	buf[17] = byte(l.Type)
	buf[18] = byte(c)
	var appendedAt int64
	if !l.AppendedAt.IsZero() {
		appendedAt = l.AppendedAt.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[19:27], uint64(appendedAt))
	binary.BigEndian.PutUint32(buf[27:31], uint32(len(data)))
	n := logHeaderSize
	n += copy(buf[n:], data)
	binary.BigEndian.PutUint32(buf[n:n+4], uint32(len(l.Extensions)))
	copy(buf[n+4:], l.Extensions)
	return buf, nil
}

func decodeLog(buf []byte, l *raft.Log) error {
	if len(buf) < logHeaderSize || buf[0] != kindLog {
		return fmt.Errorf("%w: not a log entry (%d bytes)", ErrInvalidEntry, len(buf))
	}
	dataLen := int(binary.BigEndian.Uint32(buf[27:31]))
	if len(buf) < logHeaderSize+dataLen+4 {
		return fmt.Errorf("%w: data length %d exceeds entry", ErrInvalidEntry, dataLen)
	}
	extOff := logHeaderSize + dataLen
	extLen := int(binary.BigEndian.Uint32(buf[extOff : extOff+4]))
	if len(buf) < extOff+4+extLen {
		return fmt.Errorf("%w: extensions length %d exceeds entry", ErrInvalidEntry, extLen)
	}

	c := util.Compression(buf[18])
	data, err := util.Decompress(buf[logHeaderSize:extOff], c)
	if err != nil {
		return fmt.Errorf("decompress (%s): %w", c, err)
	}
	if len(data) == 0 {
		data = nil
	}

	l.Index = binary.BigEndian.Uint64(buf[1:9])
	l.Term = binary.BigEndian.Uint64(buf[9:17])
	l.Type = raft.LogType(buf[17])
	l.Data = data
	l.Extensions = nil
	if extLen > 0 {
		l.Extensions = append([]byte(nil), buf[extOff+4:extOff+4+extLen]...)
	}
	l.AppendedAt = time.Time{}
	if ns := int64(binary.BigEndian.Uint64(buf[19:27])); ns != 0 {
		l.AppendedAt = time.Unix(0, ns)
	}
	return nil
}

// peekIndex returns the raft index of an encoded log entry.
func peekIndex(buf []byte) (uint64, error) {
	if len(buf) < logHeaderSize || buf[0] != kindLog {
		return 0, fmt.Errorf("%w: not a log entry (%d bytes)", ErrInvalidEntry, len(buf))
	}
	return binary.BigEndian.Uint64(buf[1:9]), nil
}

func encodeDeleteRange(min, max uint64) []byte {
	buf := make([]byte, deleteRangeSize)
	buf[0] = kindDeleteRange
	binary.BigEndian.PutUint64(buf[1:9], min)
	binary.BigEndian.PutUint64(buf[9:17], max)
	return buf
}

func decodeDeleteRange(buf []byte) (uint64, uint64, error) {
	if len(buf) != deleteRangeSize || buf[0] != kindDeleteRange {
		return 0, 0, fmt.Errorf("%w: not a delete-range entry (%d bytes)", ErrInvalidEntry, len(buf))
	}
	return binary.BigEndian.Uint64(buf[1:9]), binary.BigEndian.Uint64(buf[9:17]), nil
}
