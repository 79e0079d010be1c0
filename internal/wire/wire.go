package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("rollcache: corrupt member")
	magic4     = [...]byte{'R', 'O', 'L', 'L'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Member: magic(4) | ver(1) | id(i64 be) | payload(rest)
//
// The id inside the frame keeps members with distinct IDs distinct even
// when their payloads are byte-equal. Encoding is deterministic: equal id
// and payload always produce identical frames.
func EncodeMember(id int64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 8 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], uint64(id))
	buf.Write(u8[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeMember(b []byte) (id int64, payload []byte, err error) {
	const hdr = 4 + 1 + 8
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	id = int64(binary.BigEndian.Uint64(b[5:hdr]))
	return id, b[hdr:], nil
}
