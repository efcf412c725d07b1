package fuse

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
	"github.com/driftfs/driftfs/pkg/filesystem"
)

// recorder captures every frame a session writes back to the kernel.
type recorder struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *recorder) Send(buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	r.frames = append(r.frames, cp)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) frame(i int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[i]
}

func (r *recorder) last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[len(r.frames)-1]
}

// errnoOf extracts the errno of one reply frame. Zero means success.
func errnoOf(frame []byte) syscall.Errno {
	return syscall.Errno(-int32(binary.LittleEndian.Uint32(frame[4:8])))
}

func uniqueOf(frame []byte) uint64 {
	return binary.LittleEndian.Uint64(frame[8:16])
}

// stubFS records backend calls and answers the handful of operations the
// tests exercise. Everything else falls through to Base's ENOSYS.
type stubFS struct {
	filesystem.Base

	mu            sync.Mutex
	initErrno     syscall.Errno
	initCalled    bool
	destroyCalled bool
	forgotten     []wire.ForgetItem
	renameFlags   uint32
	setLkSleep    bool
}

func (f *stubFS) Init(ctx context.Context, meta filesystem.Meta, config *filesystem.KernelConfig) syscall.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalled = true
	return f.initErrno
}

func (f *stubFS) Destroy(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyCalled = true
}

func (f *stubFS) GetAttr(ctx context.Context, meta filesystem.Meta, op *wire.GetAttrOp, reply *filesystem.AttrReply) {
	reply.Attr(&wire.AttrOut{Attr: wire.Attr{Ino: meta.Node, Mode: 0o644}})
}

func (f *stubFS) Read(ctx context.Context, meta filesystem.Meta, op *wire.ReadOp, reply *filesystem.DataReply) {
	reply.Data([]byte("payload"))
}

func (f *stubFS) Forget(ctx context.Context, meta filesystem.Meta, op *wire.ForgetOp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, wire.ForgetItem{NodeID: meta.Node, NLookup: op.NLookup})
}

func (f *stubFS) BatchForget(ctx context.Context, meta filesystem.Meta, op *wire.BatchForgetOp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, op.Items...)
}

func (f *stubFS) Rename(ctx context.Context, meta filesystem.Meta, op *wire.RenameOp, flags uint32, reply *filesystem.EmptyReply) {
	f.mu.Lock()
	f.renameFlags = flags
	f.mu.Unlock()
	reply.Ok()
}

func (f *stubFS) SetLk(ctx context.Context, meta filesystem.Meta, op *wire.SetLkOp, sleep bool, reply *filesystem.EmptyReply) {
	f.mu.Lock()
	f.setLkSleep = sleep
	f.mu.Unlock()
	reply.Ok()
}

type dispatcher interface {
	Dispatch(ctx context.Context, req *wire.Request)
}

// send builds a raw kernel frame, parses it and dispatches it. It reports
// failures through assert rather than require so it stays safe to call from
// worker goroutines in the concurrency tests.
func send(t *testing.T, s dispatcher, opcode wire.Opcode, unique, node uint64, uid uint32, payload []byte) {
	t.Helper()

	hdr := wire.InHeader{
		Len:    uint32(wire.InHeaderSize + len(payload)),
		Opcode: uint32(opcode),
		Unique: unique,
		NodeID: node,
		UID:    uid,
		GID:    uid,
		PID:    4242,
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &hdr); !assert.NoError(t, err) {
		return
	}
	buf.Write(payload)

	req, err := wire.ParseRequest(buf.Bytes())
	if !assert.NoError(t, err) {
		return
	}
	s.Dispatch(context.Background(), req)
}

func initPayload(major, minor uint32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], major)
	binary.LittleEndian.PutUint32(buf[4:8], minor)
	binary.LittleEndian.PutUint32(buf[8:12], 131072)
	binary.LittleEndian.PutUint32(buf[12:16], 0xffffffff)
	return buf
}

// getattrPayload is flags, padding and a file handle, all zero.
func getattrPayload() []byte { return make([]byte, 16) }

// readPayload covers READ, READDIR and READDIRPLUS, which share a layout.
func readPayload(size uint32) []byte {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint32(buf[16:20], size)
	return buf
}

func sendInit(t *testing.T, s dispatcher, rec *recorder, major, minor uint32) {
	t.Helper()
	send(t, s, wire.OpInit, 1, 0, 0, initPayload(major, minor))
	require.Equal(t, syscall.Errno(0), errnoOf(rec.last()), "init handshake failed")
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestSession_RejectsBeforeInit(t *testing.T) {
	rec := &recorder{}
	s := NewSession(&stubFS{}, rec, ACLUnrestricted, 1000, nil)

	send(t, s, wire.OpGetAttr, 5, 7, 1000, getattrPayload())

	require.Equal(t, 1, rec.count())
	assert.Equal(t, syscall.EIO, errnoOf(rec.frame(0)))
	assert.Equal(t, uint64(5), uniqueOf(rec.frame(0)))
	assert.False(t, s.Initialized())
}

func TestSession_InitHandshake(t *testing.T) {
	rec := &recorder{}
	fs := &stubFS{}
	s := NewSession(fs, rec, ACLUnrestricted, 1000, nil)

	send(t, s, wire.OpInit, 1, 0, 0, initPayload(7, 31))

	require.Equal(t, 1, rec.count())
	frame := rec.frame(0)
	require.Equal(t, syscall.Errno(0), errnoOf(frame))
	assert.Equal(t, uint64(1), uniqueOf(frame))
	assert.True(t, fs.initCalled)
	assert.True(t, s.Initialized())

	major, minor := s.ProtoVersion()
	assert.Equal(t, uint32(7), major)
	assert.Equal(t, uint32(31), minor)

	// InitOut follows the 16-byte header.
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(frame[16:20]))
	assert.Equal(t, uint32(31), binary.LittleEndian.Uint32(frame[20:24]))
	maxWrite := binary.LittleEndian.Uint32(frame[36:40])
	assert.Equal(t, uint32(1<<20), maxWrite)
	// MaxPages covers MaxWrite rounded up to whole pages.
	maxPages := binary.LittleEndian.Uint16(frame[44:46])
	assert.Equal(t, uint16((maxWrite+4095)/4096), maxPages)
}

func TestSession_InitRejectsOldProtocol(t *testing.T) {
	cases := []struct {
		name  string
		major uint32
		minor uint32
	}{
		{"minor too old", 7, 5},
		{"major too old", 6, 31},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			s := NewSession(&stubFS{}, rec, ACLUnrestricted, 1000, nil)

			send(t, s, wire.OpInit, 1, 0, 0, initPayload(tc.major, tc.minor))

			require.Equal(t, 1, rec.count())
			assert.Equal(t, syscall.EPROTO, errnoOf(rec.frame(0)))
			assert.False(t, s.Initialized())

			major, minor := s.ProtoVersion()
			assert.Zero(t, major)
			assert.Zero(t, minor)
		})
	}
}

func TestSession_InitNewerMajor(t *testing.T) {
	rec := &recorder{}
	fs := &stubFS{}
	s := NewSession(fs, rec, ACLUnrestricted, 1000, nil)

	send(t, s, wire.OpInit, 1, 0, 0, initPayload(8, 0))

	// Version-only answer: the kernel downgrades and re-sends INIT.
	require.Equal(t, 1, rec.count())
	frame := rec.frame(0)
	require.Equal(t, syscall.Errno(0), errnoOf(frame))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(frame[16:20]))
	assert.Equal(t, uint32(31), binary.LittleEndian.Uint32(frame[20:24]))
	assert.False(t, fs.initCalled)
	assert.False(t, s.Initialized())

	send(t, s, wire.OpInit, 2, 0, 0, initPayload(7, 31))
	assert.True(t, s.Initialized())
}

func TestSession_InitClampsMinor(t *testing.T) {
	rec := &recorder{}
	s := NewSession(&stubFS{}, rec, ACLUnrestricted, 1000, nil)

	sendInit(t, s, rec, 7, 40)

	_, minor := s.ProtoVersion()
	assert.Equal(t, uint32(31), minor)
}

func TestSession_DuplicateInit(t *testing.T) {
	rec := &recorder{}
	s := NewSession(&stubFS{}, rec, ACLUnrestricted, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	send(t, s, wire.OpInit, 2, 0, 0, initPayload(7, 31))

	require.Equal(t, 2, rec.count())
	assert.Equal(t, syscall.EIO, errnoOf(rec.frame(1)))
	assert.True(t, s.Initialized())
}

func TestSession_InitBackendRejection(t *testing.T) {
	rec := &recorder{}
	fs := &stubFS{initErrno: syscall.ENOMEM}
	s := NewSession(fs, rec, ACLUnrestricted, 1000, nil)

	send(t, s, wire.OpInit, 1, 0, 0, initPayload(7, 31))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, syscall.ENOMEM, errnoOf(rec.frame(0)))
	assert.False(t, s.Initialized())
}

func TestSession_Destroy(t *testing.T) {
	rec := &recorder{}
	fs := &stubFS{}
	s := NewSession(fs, rec, ACLUnrestricted, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	send(t, s, wire.OpDestroy, 2, 0, 0, nil)

	require.Equal(t, 2, rec.count())
	assert.Equal(t, syscall.Errno(0), errnoOf(rec.frame(1)))
	assert.Equal(t, uint64(2), uniqueOf(rec.frame(1)))
	assert.True(t, fs.destroyCalled)
	assert.True(t, s.Destroyed())

	// The session stays torn down: regular requests and a second DESTROY
	// are both ordering violations.
	send(t, s, wire.OpGetAttr, 3, 7, 1000, getattrPayload())
	assert.Equal(t, syscall.EIO, errnoOf(rec.frame(2)))

	send(t, s, wire.OpDestroy, 4, 0, 0, nil)
	assert.Equal(t, syscall.EIO, errnoOf(rec.frame(3)))
}

func TestSession_DestroyBeforeInit(t *testing.T) {
	rec := &recorder{}
	fs := &stubFS{}
	s := NewSession(fs, rec, ACLUnrestricted, 1000, nil)

	send(t, s, wire.OpDestroy, 1, 0, 0, nil)

	require.Equal(t, 1, rec.count())
	assert.Equal(t, syscall.EIO, errnoOf(rec.frame(0)))
	assert.False(t, fs.destroyCalled)
}

// ============================================================================
// Routing Tests
// ============================================================================

func TestSession_UniqueCorrelation(t *testing.T) {
	rec := &recorder{}
	s := NewSession(&stubFS{}, rec, ACLUnrestricted, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	for _, unique := range []uint64{2, 99, 1 << 40} {
		send(t, s, wire.OpGetAttr, unique, 7, 1000, getattrPayload())
		assert.Equal(t, unique, uniqueOf(rec.last()))
		assert.Equal(t, syscall.Errno(0), errnoOf(rec.last()))
	}
}

func TestSession_ForgetIsSilent(t *testing.T) {
	rec := &recorder{}
	fs := &stubFS{}
	s := NewSession(fs, rec, ACLUnrestricted, 1000, nil)
	sendInit(t, s, rec, 7, 31)
	replies := rec.count()

	forget := make([]byte, 8)
	binary.LittleEndian.PutUint64(forget, 3)
	send(t, s, wire.OpForget, 2, 10, 1000, forget)

	batch := make([]byte, 24)
	binary.LittleEndian.PutUint32(batch[0:4], 1)
	binary.LittleEndian.PutUint64(batch[8:16], 11)
	binary.LittleEndian.PutUint64(batch[16:24], 2)
	send(t, s, wire.OpBatchForget, 3, 0, 1000, batch)

	assert.Equal(t, replies, rec.count(), "forget must not produce a reply")
	require.Len(t, fs.forgotten, 2)
	assert.Equal(t, wire.ForgetItem{NodeID: 10, NLookup: 3}, fs.forgotten[0])
	assert.Equal(t, wire.ForgetItem{NodeID: 11, NLookup: 2}, fs.forgotten[1])
}

func TestSession_Rename2CarriesFlags(t *testing.T) {
	rec := &recorder{}
	fs := &stubFS{}
	s := NewSession(fs, rec, ACLUnrestricted, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	payload := new(bytes.Buffer)
	_ = binary.Write(payload, binary.LittleEndian, uint64(9))
	_ = binary.Write(payload, binary.LittleEndian, uint32(1))
	_ = binary.Write(payload, binary.LittleEndian, uint32(0))
	payload.WriteString("a\x00b\x00")
	send(t, s, wire.OpRename2, 2, 1, 1000, payload.Bytes())

	assert.Equal(t, syscall.Errno(0), errnoOf(rec.last()))
	assert.Equal(t, uint32(1), fs.renameFlags)
}

func TestSession_SetLkWSleeps(t *testing.T) {
	rec := &recorder{}
	fs := &stubFS{}
	s := NewSession(fs, rec, ACLUnrestricted, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	send(t, s, wire.OpSetLkW, 2, 7, 1000, make([]byte, 48))

	assert.Equal(t, syscall.Errno(0), errnoOf(rec.last()))
	assert.True(t, fs.setLkSleep)
}

func TestSession_InterruptUnsupported(t *testing.T) {
	rec := &recorder{}
	s := NewSession(&stubFS{}, rec, ACLUnrestricted, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	send(t, s, wire.OpInterrupt, 2, 0, 1000, make([]byte, 8))

	assert.Equal(t, syscall.ENOSYS, errnoOf(rec.last()))
}

func TestSession_UnrestrictedIoctlUnsupported(t *testing.T) {
	rec := &recorder{}
	s := NewSession(&stubFS{}, rec, ACLUnrestricted, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	payload := make([]byte, 32)
	binary.LittleEndian.PutUint32(payload[8:12], wire.IoctlUnrestricted)
	send(t, s, wire.OpIoCtl, 2, 7, 1000, payload)

	assert.Equal(t, syscall.ENOSYS, errnoOf(rec.last()))
}

// ============================================================================
// Access Control Tests
// ============================================================================

func TestSession_ACLOwnerOnly(t *testing.T) {
	rec := &recorder{}
	s := NewSession(&stubFS{}, rec, ACLOwnerOnly, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	// The owner passes.
	send(t, s, wire.OpGetAttr, 2, 7, 1000, getattrPayload())
	assert.Equal(t, syscall.Errno(0), errnoOf(rec.last()))

	// Another user is denied, root included.
	send(t, s, wire.OpGetAttr, 3, 7, 2000, getattrPayload())
	assert.Equal(t, syscall.EACCES, errnoOf(rec.last()))

	send(t, s, wire.OpGetAttr, 4, 7, 0, getattrPayload())
	assert.Equal(t, syscall.EACCES, errnoOf(rec.last()))
}

func TestSession_ACLRootAndOwner(t *testing.T) {
	rec := &recorder{}
	s := NewSession(&stubFS{}, rec, ACLRootAndOwner, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	send(t, s, wire.OpGetAttr, 2, 7, 0, getattrPayload())
	assert.Equal(t, syscall.Errno(0), errnoOf(rec.last()))

	send(t, s, wire.OpGetAttr, 3, 7, 1000, getattrPayload())
	assert.Equal(t, syscall.Errno(0), errnoOf(rec.last()))

	send(t, s, wire.OpGetAttr, 4, 7, 2000, getattrPayload())
	assert.Equal(t, syscall.EACCES, errnoOf(rec.last()))
}

func TestSession_ACLBypassForKernelBookkeeping(t *testing.T) {
	rec := &recorder{}
	s := NewSession(&stubFS{}, rec, ACLOwnerOnly, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	// READ is kernel page-cache traffic: it reaches the backend no matter
	// which user faulted the page in.
	send(t, s, wire.OpRead, 2, 7, 2000, readPayload(4096))
	assert.Equal(t, syscall.Errno(0), errnoOf(rec.last()))
	assert.Equal(t, []byte("payload"), rec.last()[16:])

	// SETATTR is not on the bypass list.
	setattr := make([]byte, 88)
	send(t, s, wire.OpSetAttr, 3, 7, 2000, setattr)
	assert.Equal(t, syscall.EACCES, errnoOf(rec.last()))
}

func TestSession_ACLReadDirPlusByProtocol(t *testing.T) {
	t.Run("modern protocol bypasses", func(t *testing.T) {
		rec := &recorder{}
		s := NewSession(&stubFS{}, rec, ACLOwnerOnly, 1000, nil)
		sendInit(t, s, rec, 7, 31)

		send(t, s, wire.OpReadDirPlus, 2, 1, 2000, readPayload(8192))
		// Reaches the backend; the stub does not implement it.
		assert.Equal(t, syscall.ENOSYS, errnoOf(rec.last()))
	})

	t.Run("old protocol enforces", func(t *testing.T) {
		rec := &recorder{}
		s := NewSession(&stubFS{}, rec, ACLOwnerOnly, 1000, nil)
		sendInit(t, s, rec, 7, 20)

		send(t, s, wire.OpReadDirPlus, 2, 1, 2000, readPayload(8192))
		assert.Equal(t, syscall.EACCES, errnoOf(rec.last()))
	})
}

// TestSession_ACLPartitionAllOpcodes drives every opcode from a non-owner
// uid under OwnerOnly and checks the exact split: the kernel bookkeeping set
// reaches the engine, everything else is denied with EACCES.
func TestSession_ACLPartitionAllOpcodes(t *testing.T) {
	cases := []struct {
		opcode    wire.Opcode
		op        wire.Operation
		bypass    bool
		replyless bool
	}{
		{wire.OpLookup, &wire.LookupOp{}, false, false},
		{wire.OpForget, &wire.ForgetOp{}, true, true},
		{wire.OpGetAttr, &wire.GetAttrOp{}, false, false},
		{wire.OpSetAttr, &wire.SetAttrOp{}, false, false},
		{wire.OpReadLink, &wire.ReadLinkOp{}, false, false},
		{wire.OpSymLink, &wire.SymLinkOp{}, false, false},
		{wire.OpMkNod, &wire.MkNodOp{}, false, false},
		{wire.OpMkDir, &wire.MkDirOp{}, false, false},
		{wire.OpUnlink, &wire.UnlinkOp{}, false, false},
		{wire.OpRmDir, &wire.RmDirOp{}, false, false},
		{wire.OpRename, &wire.RenameOp{}, false, false},
		{wire.OpLink, &wire.LinkOp{}, false, false},
		{wire.OpOpen, &wire.OpenOp{}, false, false},
		{wire.OpRead, &wire.ReadOp{Size: 4096}, true, false},
		{wire.OpWrite, &wire.WriteOp{}, true, false},
		{wire.OpStatFs, &wire.StatFsOp{}, false, false},
		{wire.OpRelease, &wire.ReleaseOp{}, true, false},
		{wire.OpFSync, &wire.FSyncOp{}, true, false},
		{wire.OpSetXAttr, &wire.SetXAttrOp{}, false, false},
		{wire.OpGetXAttr, &wire.GetXAttrOp{}, false, false},
		{wire.OpListXAttr, &wire.ListXAttrOp{}, false, false},
		{wire.OpRemoveXAttr, &wire.RemoveXAttrOp{}, false, false},
		{wire.OpFlush, &wire.FlushOp{}, false, false},
		{wire.OpInit, &wire.InitOp{Major: 7, Minor: 31}, true, false},
		{wire.OpOpenDir, &wire.OpenDirOp{}, false, false},
		{wire.OpReadDir, &wire.ReadDirOp{Size: 4096}, true, false},
		{wire.OpReleaseDir, &wire.ReleaseDirOp{}, true, false},
		{wire.OpFSyncDir, &wire.FSyncDirOp{}, true, false},
		{wire.OpGetLk, &wire.GetLkOp{}, false, false},
		{wire.OpSetLk, &wire.SetLkOp{}, false, false},
		{wire.OpSetLkW, &wire.SetLkWOp{}, false, false},
		{wire.OpAccess, &wire.AccessOp{}, false, false},
		{wire.OpCreate, &wire.CreateOp{}, false, false},
		{wire.OpInterrupt, &wire.InterruptOp{}, false, false},
		{wire.OpBMap, &wire.BMapOp{}, false, false},
		{wire.OpDestroy, &wire.DestroyOp{}, true, false},
		{wire.OpIoCtl, &wire.IoCtlOp{}, false, false},
		{wire.OpPoll, &wire.PollOp{}, false, false},
		{wire.OpNotifyReply, &wire.NotifyReplyOp{}, false, false},
		{wire.OpBatchForget, &wire.BatchForgetOp{}, true, true},
		{wire.OpFAllocate, &wire.FAllocateOp{}, false, false},
		{wire.OpReadDirPlus, &wire.ReadDirPlusOp{Size: 4096}, true, false},
		{wire.OpRename2, &wire.Rename2Op{}, false, false},
		{wire.OpLseek, &wire.LseekOp{}, false, false},
		{wire.OpCopyFileRange, &wire.CopyFileRangeOp{}, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.opcode.String(), func(t *testing.T) {
			rec := &recorder{}
			s := NewSession(&stubFS{}, rec, ACLOwnerOnly, 1000, nil)
			sendInit(t, s, rec, 7, 31)
			before := rec.count()

			s.Dispatch(context.Background(), &wire.Request{
				Header: wire.InHeader{
					Len:    uint32(wire.InHeaderSize),
					Opcode: uint32(tc.opcode),
					Unique: 2,
					NodeID: 7,
					UID:    2000,
					GID:    2000,
					PID:    4242,
				},
				Op: tc.op,
			})

			if tc.replyless {
				assert.Equal(t, before, rec.count(), "must not reply")
				return
			}
			require.Equal(t, before+1, rec.count())
			errno := errnoOf(rec.last())
			if tc.bypass {
				assert.NotEqual(t, syscall.EACCES, errno, "must reach the engine")
			} else {
				assert.Equal(t, syscall.EACCES, errno, "must be denied")
			}
		})
	}
}

// ============================================================================
// Shared Session Tests
// ============================================================================

func TestSharedSession_Lifecycle(t *testing.T) {
	rec := &recorder{}
	s := NewSharedSession(&stubFS{}, rec, ACLUnrestricted, 1000, nil)

	send(t, s, wire.OpGetAttr, 1, 7, 1000, getattrPayload())
	assert.Equal(t, syscall.EIO, errnoOf(rec.last()))

	sendInit(t, s, rec, 7, 31)
	assert.True(t, s.Initialized())

	send(t, s, wire.OpDestroy, 3, 0, 0, nil)
	assert.Equal(t, syscall.Errno(0), errnoOf(rec.last()))
	assert.True(t, s.Destroyed())
}

func TestSharedSession_ConcurrentDispatch(t *testing.T) {
	rec := &recorder{}
	s := NewSharedSession(&stubFS{}, rec, ACLUnrestricted, 1000, nil)
	sendInit(t, s, rec, 7, 31)

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(unique uint64) {
			defer wg.Done()
			send(t, s, wire.OpGetAttr, unique, 7, 1000, getattrPayload())
		}(uint64(i + 2))
	}
	wg.Wait()

	// One INIT reply plus one per worker, all successful.
	require.Equal(t, workers+1, rec.count())
	for i := 1; i <= workers; i++ {
		assert.Equal(t, syscall.Errno(0), errnoOf(rec.frame(i)))
	}
}
