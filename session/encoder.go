package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const snapshotFormatVersionV1 = 1

// ErrSnapshotCorrupt is returned when a cached snapshot blob cannot be
// decoded.
var ErrSnapshotCorrupt = errors.New("snapshot record corrupt")

// record is the cached form of an identity snapshot: the refresh generation
// that produced it, the identity itself, and the fetch time.
type record struct {
	Generation uint64
	Identity   Identity
	FetchedAt  time.Time
}

// encodeRecord writes the compact v1 binary form. Layout:
//
//	[1]   version
//	[8]   generation (big endian)
//	[8]   identity id (big endian, two's complement)
//	[1+n] email (byte length prefix)
//	[1+n] username (byte length prefix)
//	[1]   role count, then per role [1+n]
//	[1]   active flag
//	[8]   fetched-at unix seconds (big endian)
//
// The generation sits at a fixed offset so the cache's Lua guard can read it
// without a full decode.
func encodeRecord(r *record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(snapshotFormatVersionV1)

	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], r.Generation)
	buf.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(r.Identity.ID))
	buf.Write(scratch[:])

	if err := writeShortString(&buf, r.Identity.Email); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, r.Identity.Username); err != nil {
		return nil, err
	}

	if len(r.Identity.Roles) > 255 {
		return nil, errors.New("too many roles")
	}
	buf.WriteByte(byte(len(r.Identity.Roles)))
	for _, role := range r.Identity.Roles {
		if err := writeShortString(&buf, role); err != nil {
			return nil, err
		}
	}

	if r.Identity.Active {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	binary.BigEndian.PutUint64(scratch[:], uint64(r.FetchedAt.Unix()))
	buf.Write(scratch[:])

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*record, error) {
	rd := bytes.NewReader(data)

	version, err := rd.ReadByte()
	if err != nil {
		return nil, ErrSnapshotCorrupt
	}
	if version != snapshotFormatVersionV1 {
		return nil, ErrSnapshotCorrupt
	}

	var out record
	var scratch [8]byte

	if _, err := io.ReadFull(rd, scratch[:]); err != nil {
		return nil, ErrSnapshotCorrupt
	}
	out.Generation = binary.BigEndian.Uint64(scratch[:])

	if _, err := io.ReadFull(rd, scratch[:]); err != nil {
		return nil, ErrSnapshotCorrupt
	}
	out.Identity.ID = int64(binary.BigEndian.Uint64(scratch[:]))

	if out.Identity.Email, err = readShortString(rd); err != nil {
		return nil, ErrSnapshotCorrupt
	}
	if out.Identity.Username, err = readShortString(rd); err != nil {
		return nil, ErrSnapshotCorrupt
	}

	count, err := rd.ReadByte()
	if err != nil {
		return nil, ErrSnapshotCorrupt
	}
	if count > 0 {
		out.Identity.Roles = make([]string, 0, count)
		for i := 0; i < int(count); i++ {
			role, err := readShortString(rd)
			if err != nil {
				return nil, ErrSnapshotCorrupt
			}
			out.Identity.Roles = append(out.Identity.Roles, role)
		}
	}

	active, err := rd.ReadByte()
	if err != nil {
		return nil, ErrSnapshotCorrupt
	}
	out.Identity.Active = active == 1

	if _, err := io.ReadFull(rd, scratch[:]); err != nil {
		return nil, ErrSnapshotCorrupt
	}
	out.FetchedAt = time.Unix(int64(binary.BigEndian.Uint64(scratch[:])), 0).UTC()

	if rd.Len() != 0 {
		return nil, ErrSnapshotCorrupt
	}

	return &out, nil
}

func writeShortString(buf *bytes.Buffer, s string) error {
	if len(s) > 255 {
		return errors.New("string field too long")
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func readShortString(rd *bytes.Reader) (string, error) {
	n, err := rd.ReadByte()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(rd, out); err != nil {
		return "", err
	}
	return string(out), nil
}
