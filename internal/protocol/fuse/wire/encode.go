package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeReply frames a successful reply: the out header followed by zero or
// more fixed-layout payload structures and an optional raw byte tail.
func EncodeReply(unique uint64, payload any, data []byte) ([]byte, error) {
	size := OutHeaderSize + len(data)
	if payload != nil {
		n := binary.Size(payload)
		if n < 0 {
			return nil, fmt.Errorf("fuse: payload %T has no fixed wire size", payload)
		}
		size += n
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	hdr := OutHeader{Len: uint32(size), Error: 0, Unique: unique}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if payload != nil {
		if err := binary.Write(buf, binary.LittleEndian, payload); err != nil {
			return nil, err
		}
	}
	buf.Write(data)
	return buf.Bytes(), nil
}

// EncodeError frames an error reply. The errno travels negated, as the
// kernel expects.
func EncodeError(unique uint64, errno int32) []byte {
	buf := make([]byte, OutHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], OutHeaderSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(-errno))
	binary.LittleEndian.PutUint64(buf[8:16], unique)
	return buf
}

// EncodeNotify frames an unsolicited notification. Notifications carry the
// code in the error field and unique 0.
func EncodeNotify(code int32, payload any) ([]byte, error) {
	n := binary.Size(payload)
	if n < 0 {
		return nil, fmt.Errorf("fuse: payload %T has no fixed wire size", payload)
	}
	buf := bytes.NewBuffer(make([]byte, 0, OutHeaderSize+n))
	hdr := OutHeader{Len: uint32(OutHeaderSize + n), Error: code, Unique: 0}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DirentEntrySize returns the encoded size of one fuse_dirent carrying name.
func DirentEntrySize(name string) uint32 {
	return direntAlign(direntSize + uint32(len(name)))
}

// DirentPlusEntrySize returns the encoded size of one fuse_direntplus
// carrying name.
func DirentPlusEntrySize(name string) uint32 {
	return direntAlign(direntPlusSize + uint32(len(name)))
}

// AppendDirent packs one directory entry onto buf in fuse_dirent layout.
// The record is zero-padded to an 8-byte boundary.
func AppendDirent(buf []byte, ino uint64, off uint64, typ uint32, name string) []byte {
	recLen := direntSize + uint32(len(name))
	padded := direntAlign(recLen)

	var fixed [direntSize]byte
	binary.LittleEndian.PutUint64(fixed[0:8], ino)
	binary.LittleEndian.PutUint64(fixed[8:16], off)
	binary.LittleEndian.PutUint32(fixed[16:20], uint32(len(name)))
	binary.LittleEndian.PutUint32(fixed[20:24], typ)

	buf = append(buf, fixed[:]...)
	buf = append(buf, name...)
	for i := recLen; i < padded; i++ {
		buf = append(buf, 0)
	}
	return buf
}

// AppendDirentPlus packs one readdirplus entry: a full EntryOut followed by
// the fuse_dirent record for the same name.
func AppendDirentPlus(buf []byte, entry *EntryOut, off uint64, typ uint32, name string) []byte {
	var eb bytes.Buffer
	// EntryOut is fixed-layout; Write cannot fail on a bytes.Buffer.
	binary.Write(&eb, binary.LittleEndian, entry) //nolint:errcheck
	buf = append(buf, eb.Bytes()...)
	return AppendDirent(buf, entry.NodeID, off, typ, name)
}
