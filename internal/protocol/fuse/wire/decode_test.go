package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame builds one raw kernel request buffer: a 40-byte little-endian
// header followed by the opcode-specific payload.
func frame(t *testing.T, opcode Opcode, unique, nodeID uint64, payload []byte) []byte {
	t.Helper()

	hdr := InHeader{
		Len:    uint32(InHeaderSize + len(payload)),
		Opcode: uint32(opcode),
		Unique: unique,
		NodeID: nodeID,
		UID:    1000,
		GID:    1000,
		PID:    4242,
	}

	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, &hdr))
	buf.Write(payload)
	return buf.Bytes()
}

// le packs a sequence of uint32/uint64/string/[]byte values little-endian.
// Strings are NUL-terminated, raw byte slices are copied verbatim.
func le(t *testing.T, fields ...any) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	for _, f := range fields {
		switch v := f.(type) {
		case uint32, uint64:
			require.NoError(t, binary.Write(buf, binary.LittleEndian, v))
		case string:
			buf.WriteString(v)
			buf.WriteByte(0)
		case []byte:
			buf.Write(v)
		default:
			t.Fatalf("unsupported field type %T", f)
		}
	}
	return buf.Bytes()
}

// ============================================================================
// Header Tests
// ============================================================================

func TestParseRequest_Header(t *testing.T) {
	buf := frame(t, OpGetAttr, 77, 12, le(t, uint32(0), uint32(0), uint64(0)))

	req, err := ParseRequest(buf)
	require.NoError(t, err)

	assert.Equal(t, uint32(OpGetAttr), req.Header.Opcode)
	assert.Equal(t, uint64(77), req.Header.Unique)
	assert.Equal(t, uint64(12), req.Header.NodeID)
	assert.Equal(t, uint32(1000), req.Header.UID)
	assert.Equal(t, uint32(1000), req.Header.GID)
	assert.Equal(t, uint32(4242), req.Header.PID)
}

func TestParseRequest_ShortBuffer(t *testing.T) {
	_, err := ParseRequest(make([]byte, InHeaderSize-1))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Reason, "too short")
}

func TestParseRequest_LengthMismatch(t *testing.T) {
	buf := frame(t, OpGetAttr, 1, 1, le(t, uint32(0), uint32(0), uint64(0)))
	// Header claims more bytes than the buffer holds.
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)+8))

	_, err := ParseRequest(buf)

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, OpGetAttr, derr.Opcode)
	assert.Contains(t, derr.Reason, "does not match")
}

func TestParseRequest_UnknownOpcode(t *testing.T) {
	_, err := ParseRequest(frame(t, Opcode(9999), 1, 1, nil))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Reason, "unknown opcode")
}

func TestParseRequest_TruncatedPayload(t *testing.T) {
	// GETATTR needs 16 payload bytes; offer only 4.
	_, err := ParseRequest(frame(t, OpGetAttr, 1, 1, le(t, uint32(0))))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Reason, "truncated")
}

func TestParseRequest_UnterminatedName(t *testing.T) {
	_, err := ParseRequest(frame(t, OpLookup, 1, 1, []byte("file.txt")))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Reason, "unterminated")
}

// ============================================================================
// Session Operations
// ============================================================================

func TestParseRequest_Init(t *testing.T) {
	payload := le(t, uint32(7), uint32(31), uint32(131072), uint32(InitBigWrites|InitMaxPages))

	req, err := ParseRequest(frame(t, OpInit, 1, 0, payload))
	require.NoError(t, err)

	op, ok := req.Op.(*InitOp)
	require.True(t, ok)
	assert.Equal(t, uint32(7), op.Major)
	assert.Equal(t, uint32(31), op.Minor)
	assert.Equal(t, uint32(131072), op.MaxReadahead)
	assert.Equal(t, uint32(InitBigWrites|InitMaxPages), op.Flags)
}

func TestParseRequest_Destroy(t *testing.T) {
	req, err := ParseRequest(frame(t, OpDestroy, 9, 0, nil))
	require.NoError(t, err)
	assert.IsType(t, &DestroyOp{}, req.Op)
}

func TestParseRequest_Forget(t *testing.T) {
	req, err := ParseRequest(frame(t, OpForget, 2, 5, le(t, uint64(3))))
	require.NoError(t, err)

	op := req.Op.(*ForgetOp)
	assert.Equal(t, uint64(3), op.NLookup)
}

func TestParseRequest_BatchForget(t *testing.T) {
	payload := le(t, uint32(2), uint32(0),
		uint64(10), uint64(1),
		uint64(11), uint64(4))

	req, err := ParseRequest(frame(t, OpBatchForget, 2, 0, payload))
	require.NoError(t, err)

	op := req.Op.(*BatchForgetOp)
	require.Len(t, op.Items, 2)
	assert.Equal(t, ForgetItem{NodeID: 10, NLookup: 1}, op.Items[0])
	assert.Equal(t, ForgetItem{NodeID: 11, NLookup: 4}, op.Items[1])
}

func TestParseRequest_BatchForget_TruncatedItems(t *testing.T) {
	// Count says two items but only one follows.
	payload := le(t, uint32(2), uint32(0), uint64(10), uint64(1))

	_, err := ParseRequest(frame(t, OpBatchForget, 2, 0, payload))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Reason, "truncated")
}

// ============================================================================
// Node Operations
// ============================================================================

func TestParseRequest_Lookup(t *testing.T) {
	req, err := ParseRequest(frame(t, OpLookup, 3, RootID, le(t, "notes.md")))
	require.NoError(t, err)

	op := req.Op.(*LookupOp)
	assert.Equal(t, "notes.md", op.Name)
}

func TestParseRequest_GetAttr(t *testing.T) {
	payload := le(t, uint32(GetattrFh), uint32(0), uint64(42))

	req, err := ParseRequest(frame(t, OpGetAttr, 4, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*GetAttrOp)
	fh, ok := op.Handle()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), fh)
}

func TestParseRequest_SetAttr(t *testing.T) {
	payload := le(t,
		uint32(FattrMode|FattrSize), uint32(0), // valid, pad
		uint64(0),          // fh
		uint64(4096),       // size
		uint64(0),          // lock owner
		uint64(1700000000), // atime
		uint64(1700000001), // mtime
		uint64(1700000002), // ctime
		uint32(0), uint32(0), uint32(0), // nsec
		uint32(0o644), uint32(0), // mode, pad
		uint32(1000), uint32(1000), uint32(0)) // uid, gid, pad

	req, err := ParseRequest(frame(t, OpSetAttr, 5, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*SetAttrOp)
	assert.Equal(t, uint32(FattrMode|FattrSize), op.Valid)
	assert.Equal(t, uint64(4096), op.Size)
	assert.Equal(t, uint64(1700000001), op.Mtime)
	assert.Equal(t, uint32(0o644), op.Mode)

	_, hasFh := op.Handle()
	assert.False(t, hasFh)
}

func TestParseRequest_MkNod(t *testing.T) {
	payload := le(t, uint32(0o644), uint32(0), uint32(0o022), uint32(0), "dev0")

	req, err := ParseRequest(frame(t, OpMkNod, 6, RootID, payload))
	require.NoError(t, err)

	op := req.Op.(*MkNodOp)
	assert.Equal(t, "dev0", op.Name)
	assert.Equal(t, uint32(0o644), op.Mode)
	assert.Equal(t, uint32(0o022), op.Umask)
}

func TestParseRequest_MkDir(t *testing.T) {
	payload := le(t, uint32(0o755), uint32(0o022), "subdir")

	req, err := ParseRequest(frame(t, OpMkDir, 6, RootID, payload))
	require.NoError(t, err)

	op := req.Op.(*MkDirOp)
	assert.Equal(t, "subdir", op.Name)
	assert.Equal(t, uint32(0o755), op.Mode)
}

func TestParseRequest_SymLink(t *testing.T) {
	req, err := ParseRequest(frame(t, OpSymLink, 7, RootID, le(t, "alias", "target/path")))
	require.NoError(t, err)

	op := req.Op.(*SymLinkOp)
	assert.Equal(t, "alias", op.LinkName)
	assert.Equal(t, "target/path", op.Target)
}

func TestParseRequest_Rename(t *testing.T) {
	payload := le(t, uint64(9), "old.txt", "new.txt")

	req, err := ParseRequest(frame(t, OpRename, 8, RootID, payload))
	require.NoError(t, err)

	op := req.Op.(*RenameOp)
	assert.Equal(t, uint64(9), op.NewDir)
	assert.Equal(t, "old.txt", op.OldName)
	assert.Equal(t, "new.txt", op.NewName)
}

func TestParseRequest_Rename2(t *testing.T) {
	payload := le(t, uint64(9), uint32(1), uint32(0), "old.txt", "new.txt")

	req, err := ParseRequest(frame(t, OpRename2, 8, RootID, payload))
	require.NoError(t, err)

	op := req.Op.(*Rename2Op)
	assert.Equal(t, uint64(9), op.NewDir)
	assert.Equal(t, uint32(1), op.Flags)
	assert.Equal(t, "old.txt", op.OldName)
	assert.Equal(t, "new.txt", op.NewName)
}

func TestParseRequest_Link(t *testing.T) {
	req, err := ParseRequest(frame(t, OpLink, 9, RootID, le(t, uint64(33), "hardlink")))
	require.NoError(t, err)

	op := req.Op.(*LinkOp)
	assert.Equal(t, uint64(33), op.OldNode)
	assert.Equal(t, "hardlink", op.NewName)
}

// ============================================================================
// File I/O Operations
// ============================================================================

func TestParseRequest_Read(t *testing.T) {
	payload := le(t,
		uint64(42),   // fh
		uint64(8192), // offset
		uint32(4096), // size
		uint32(ReadLockOwner),
		uint64(777), // lock owner
		uint32(0), uint32(0))

	req, err := ParseRequest(frame(t, OpRead, 10, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*ReadOp)
	assert.Equal(t, uint64(42), op.Fh)
	assert.Equal(t, uint64(8192), op.Offset)
	assert.Equal(t, uint32(4096), op.Size)

	owner, ok := op.Owner()
	assert.True(t, ok)
	assert.Equal(t, uint64(777), owner)
}

func TestParseRequest_Write(t *testing.T) {
	data := []byte("hello driftfs")
	payload := le(t,
		uint64(42),              // fh
		uint64(0),               // offset
		uint32(len(data)),       // size
		uint32(0),               // write flags
		uint64(0),               // lock owner
		uint32(0), uint32(0),    // flags, pad
		data)

	req, err := ParseRequest(frame(t, OpWrite, 11, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*WriteOp)
	assert.Equal(t, uint64(42), op.Fh)
	assert.Equal(t, data, op.Data)
}

func TestParseRequest_Write_TruncatedData(t *testing.T) {
	// Size field claims 64 bytes of data, none follow.
	payload := le(t,
		uint64(42), uint64(0),
		uint32(64), uint32(0),
		uint64(0),
		uint32(0), uint32(0))

	_, err := ParseRequest(frame(t, OpWrite, 11, 7, payload))

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Reason, "truncated")
}

func TestParseRequest_Flush(t *testing.T) {
	payload := le(t, uint64(42), uint64(0), uint64(555))

	req, err := ParseRequest(frame(t, OpFlush, 12, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*FlushOp)
	assert.Equal(t, uint64(42), op.Fh)
	assert.Equal(t, uint64(555), op.LockOwner)
}

func TestParseRequest_Release(t *testing.T) {
	payload := le(t, uint64(42), uint32(0), uint32(ReleaseFlush), uint64(555))

	req, err := ParseRequest(frame(t, OpRelease, 13, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*ReleaseOp)
	assert.Equal(t, uint64(42), op.Fh)
	assert.True(t, op.Flush())
}

func TestParseRequest_FSync(t *testing.T) {
	payload := le(t, uint64(42), uint32(FsyncFdatasync), uint32(0))

	req, err := ParseRequest(frame(t, OpFSync, 14, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*FSyncOp)
	assert.Equal(t, uint64(42), op.Fh)
	assert.True(t, op.DataSync())
}

// ============================================================================
// Directory Operations
// ============================================================================

func TestParseRequest_ReadDir(t *testing.T) {
	payload := le(t,
		uint64(5), uint64(0),
		uint32(4096), uint32(0),
		uint64(0),
		uint32(0), uint32(0))

	req, err := ParseRequest(frame(t, OpReadDir, 15, RootID, payload))
	require.NoError(t, err)

	op := req.Op.(*ReadDirOp)
	assert.Equal(t, uint64(5), op.Fh)
	assert.Equal(t, uint32(4096), op.Size)
}

func TestParseRequest_ReadDirPlus(t *testing.T) {
	payload := le(t,
		uint64(5), uint64(24),
		uint32(8192), uint32(0),
		uint64(0),
		uint32(0), uint32(0))

	req, err := ParseRequest(frame(t, OpReadDirPlus, 16, RootID, payload))
	require.NoError(t, err)

	op := req.Op.(*ReadDirPlusOp)
	assert.Equal(t, uint64(24), op.Offset)
	assert.Equal(t, uint32(8192), op.Size)
}

// ============================================================================
// Extended Attributes
// ============================================================================

func TestParseRequest_SetXAttr(t *testing.T) {
	value := []byte{0x01, 0x02, 0x03}
	payload := le(t, uint32(len(value)), uint32(1), "user.tag", value)

	req, err := ParseRequest(frame(t, OpSetXAttr, 17, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*SetXAttrOp)
	assert.Equal(t, "user.tag", op.Name)
	assert.Equal(t, value, op.Value)
	assert.Equal(t, uint32(1), op.Flags)
}

func TestParseRequest_GetXAttr(t *testing.T) {
	payload := le(t, uint32(256), uint32(0), "user.tag")

	req, err := ParseRequest(frame(t, OpGetXAttr, 18, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*GetXAttrOp)
	assert.Equal(t, "user.tag", op.Name)
	assert.Equal(t, uint32(256), op.Size)
}

// ============================================================================
// Locking, Create and Ranged Operations
// ============================================================================

func TestParseRequest_Create(t *testing.T) {
	payload := le(t, uint32(0x8241), uint32(0o644), uint32(0o022), uint32(0), "new.txt")

	req, err := ParseRequest(frame(t, OpCreate, 19, RootID, payload))
	require.NoError(t, err)

	op := req.Op.(*CreateOp)
	assert.Equal(t, "new.txt", op.Name)
	assert.Equal(t, uint32(0x8241), op.Flags)
	assert.Equal(t, uint32(0o644), op.Mode)
}

func TestParseRequest_SetLk(t *testing.T) {
	payload := le(t,
		uint64(42),  // fh
		uint64(777), // owner
		uint64(0), uint64(1023), uint32(1), uint32(4242), // lock
		uint32(LkFlock), uint32(0))

	req, err := ParseRequest(frame(t, OpSetLk, 20, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*SetLkOp)
	assert.Equal(t, uint64(777), op.Owner)
	assert.Equal(t, uint64(1023), op.Lock.End)
	assert.Equal(t, uint32(LkFlock), op.LkFlags)
}

func TestParseRequest_FAllocate(t *testing.T) {
	payload := le(t, uint64(42), uint64(1024), uint64(4096), uint32(0), uint32(0))

	req, err := ParseRequest(frame(t, OpFAllocate, 21, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*FAllocateOp)
	assert.Equal(t, uint64(1024), op.Offset)
	assert.Equal(t, uint64(4096), op.Length)
}

func TestParseRequest_Lseek(t *testing.T) {
	payload := le(t, uint64(42), uint64(100), uint32(3), uint32(0))

	req, err := ParseRequest(frame(t, OpLseek, 22, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*LseekOp)
	assert.Equal(t, uint64(100), op.Offset)
	assert.Equal(t, uint32(3), op.Whence)
}

func TestParseRequest_CopyFileRange(t *testing.T) {
	payload := le(t,
		uint64(42), uint64(0),
		uint64(8), uint64(43), uint64(512),
		uint64(4096), uint64(0))

	req, err := ParseRequest(frame(t, OpCopyFileRange, 23, 7, payload))
	require.NoError(t, err)

	op := req.Op.(*CopyFileRangeOp)
	assert.Equal(t, uint64(42), op.FhIn)
	assert.Equal(t, uint64(8), op.NodeIDOut)
	assert.Equal(t, uint64(512), op.OffOut)
	assert.Equal(t, uint64(4096), op.Len)
}
