package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Reply Framing
// ============================================================================

func TestEncodeError(t *testing.T) {
	buf := EncodeError(99, 2) // ENOENT

	require.Len(t, buf, OutHeaderSize)
	assert.Equal(t, uint32(OutHeaderSize), binary.LittleEndian.Uint32(buf[0:4]))
	assert.Equal(t, int32(-2), int32(binary.LittleEndian.Uint32(buf[4:8])))
	assert.Equal(t, uint64(99), binary.LittleEndian.Uint64(buf[8:16]))
}

func TestEncodeReply_HeaderOnly(t *testing.T) {
	buf, err := EncodeReply(7, nil, nil)
	require.NoError(t, err)

	require.Len(t, buf, OutHeaderSize)
	assert.Equal(t, uint32(OutHeaderSize), binary.LittleEndian.Uint32(buf[0:4]))
	assert.Equal(t, int32(0), int32(binary.LittleEndian.Uint32(buf[4:8])))
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(buf[8:16]))
}

func TestEncodeReply_Payload(t *testing.T) {
	out := &EntryOut{NodeID: 42, Generation: 3}

	buf, err := EncodeReply(8, out, nil)
	require.NoError(t, err)

	require.Len(t, buf, OutHeaderSize+128)
	assert.Equal(t, uint32(len(buf)), binary.LittleEndian.Uint32(buf[0:4]))
	// EntryOut starts right after the header, NodeID first.
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(buf[16:24]))
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(buf[24:32]))
}

func TestEncodeReply_DataTail(t *testing.T) {
	data := []byte("file contents")

	buf, err := EncodeReply(9, nil, data)
	require.NoError(t, err)

	require.Len(t, buf, OutHeaderSize+len(data))
	assert.Equal(t, uint32(len(buf)), binary.LittleEndian.Uint32(buf[0:4]))
	assert.Equal(t, data, buf[OutHeaderSize:])
}

func TestEncodeReply_PayloadAndData(t *testing.T) {
	out := &GetXAttrOut{Size: 5}
	data := []byte("value")

	buf, err := EncodeReply(10, out, data)
	require.NoError(t, err)

	require.Len(t, buf, OutHeaderSize+8+len(data))
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(buf[16:20]))
	assert.Equal(t, data, buf[OutHeaderSize+8:])
}

func TestEncodeReply_UnsizedPayload(t *testing.T) {
	_, err := EncodeReply(11, &struct{ Data []byte }{}, nil)
	assert.Error(t, err)
}

func TestEncodeNotify(t *testing.T) {
	buf, err := EncodeNotify(NotifyPoll, &NotifyPollWakeupOut{Kh: 123})
	require.NoError(t, err)

	require.Len(t, buf, OutHeaderSize+8)
	assert.Equal(t, int32(NotifyPoll), int32(binary.LittleEndian.Uint32(buf[4:8])))
	// Notifications are unsolicited: unique stays zero.
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(buf[8:16]))
	assert.Equal(t, uint64(123), binary.LittleEndian.Uint64(buf[16:24]))
}

// ============================================================================
// Directory Entry Packing
// ============================================================================

func TestDirentEntrySize(t *testing.T) {
	// 24 fixed bytes plus the name, rounded up to 8.
	assert.Equal(t, uint32(32), DirentEntrySize("a"))
	assert.Equal(t, uint32(32), DirentEntrySize("12345678"))
	assert.Equal(t, uint32(40), DirentEntrySize("123456789"))
}

func TestDirentPlusEntrySize(t *testing.T) {
	// 152 fixed bytes (EntryOut + dirent header) plus the name.
	assert.Equal(t, uint32(160), DirentPlusEntrySize("a"))
	assert.Equal(t, uint32(160), DirentPlusEntrySize("12345678"))
	assert.Equal(t, uint32(168), DirentPlusEntrySize("123456789"))
}

func TestAppendDirent(t *testing.T) {
	buf := AppendDirent(nil, 42, 1, 4, "dir")

	require.Len(t, buf, int(DirentEntrySize("dir")))
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(buf[0:8]))
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(buf[8:16]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[16:20]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[20:24]))
	assert.Equal(t, "dir", string(buf[24:27]))
	// Zero padding up to the 8-byte boundary.
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, buf[27:32])
}

func TestAppendDirent_Chained(t *testing.T) {
	buf := AppendDirent(nil, 2, 1, 4, "a")
	buf = AppendDirent(buf, 3, 2, 8, "b")

	require.Len(t, buf, 64)
	// Second record starts on the aligned boundary.
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(buf[32:40]))
	assert.Equal(t, "b", string(buf[56:57]))
}

func TestAppendDirentPlus(t *testing.T) {
	entry := &EntryOut{
		NodeID:     42,
		Generation: 1,
		Attr:       Attr{Ino: 42, Mode: 0o644},
	}

	buf := AppendDirentPlus(nil, entry, 7, 8, "file.txt")

	require.Len(t, buf, int(DirentPlusEntrySize("file.txt")))
	// EntryOut prefix, then the dirent record for the same inode.
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(buf[0:8]))
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(buf[128:136]))
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(buf[136:144]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(buf[144:148]))
	assert.Equal(t, "file.txt", string(buf[152:160]))
}
