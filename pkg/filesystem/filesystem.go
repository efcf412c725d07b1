// Package filesystem defines the backend contract of DriftFS: one method per
// kernel operation, each receiving the request metadata, the decoded typed
// arguments and a single-use replier.
//
// Backends embed Base and override what they support; everything else
// answers ENOSYS. Methods must eventually call exactly one reply method
// (success or error). Forget and BatchForget take no replier because the
// kernel never expects an answer.
package filesystem

import (
	"context"
	"syscall"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
)

// Meta carries the identity fields of one kernel request.
type Meta struct {
	Unique uint64 // request correlation id
	Node   uint64 // target inode
	UID    uint32
	GID    uint32
	PID    uint32
}

// Filesystem is implemented by DriftFS backends. The dispatch engine calls
// exactly one method per decoded request.
//
// Init runs once per session before any other method; a non-zero errno
// fails the mount. Destroy runs once when the kernel tears the session down.
type Filesystem interface {
	Init(ctx context.Context, meta Meta, config *KernelConfig) syscall.Errno
	Destroy(ctx context.Context)

	Lookup(ctx context.Context, meta Meta, op *wire.LookupOp, reply *EntryReply)
	Forget(ctx context.Context, meta Meta, op *wire.ForgetOp)
	BatchForget(ctx context.Context, meta Meta, op *wire.BatchForgetOp)
	GetAttr(ctx context.Context, meta Meta, op *wire.GetAttrOp, reply *AttrReply)
	SetAttr(ctx context.Context, meta Meta, op *wire.SetAttrOp, reply *AttrReply)
	ReadLink(ctx context.Context, meta Meta, op *wire.ReadLinkOp, reply *DataReply)

	MkNod(ctx context.Context, meta Meta, op *wire.MkNodOp, reply *EntryReply)
	MkDir(ctx context.Context, meta Meta, op *wire.MkDirOp, reply *EntryReply)
	Unlink(ctx context.Context, meta Meta, op *wire.UnlinkOp, reply *EmptyReply)
	RmDir(ctx context.Context, meta Meta, op *wire.RmDirOp, reply *EmptyReply)
	SymLink(ctx context.Context, meta Meta, op *wire.SymLinkOp, reply *EntryReply)
	// Rename serves both RENAME and RENAME2; flags is zero for the former.
	Rename(ctx context.Context, meta Meta, op *wire.RenameOp, flags uint32, reply *EmptyReply)
	Link(ctx context.Context, meta Meta, op *wire.LinkOp, reply *EntryReply)
	Create(ctx context.Context, meta Meta, op *wire.CreateOp, reply *CreateReply)

	Open(ctx context.Context, meta Meta, op *wire.OpenOp, reply *OpenReply)
	Read(ctx context.Context, meta Meta, op *wire.ReadOp, reply *DataReply)
	Write(ctx context.Context, meta Meta, op *wire.WriteOp, reply *WriteReply)
	Flush(ctx context.Context, meta Meta, op *wire.FlushOp, reply *EmptyReply)
	Release(ctx context.Context, meta Meta, op *wire.ReleaseOp, reply *EmptyReply)
	FSync(ctx context.Context, meta Meta, op *wire.FSyncOp, reply *EmptyReply)

	OpenDir(ctx context.Context, meta Meta, op *wire.OpenDirOp, reply *OpenReply)
	ReadDir(ctx context.Context, meta Meta, op *wire.ReadDirOp, reply *DirectoryReply)
	ReadDirPlus(ctx context.Context, meta Meta, op *wire.ReadDirPlusOp, reply *DirectoryPlusReply)
	ReleaseDir(ctx context.Context, meta Meta, op *wire.ReleaseDirOp, reply *EmptyReply)
	FSyncDir(ctx context.Context, meta Meta, op *wire.FSyncDirOp, reply *EmptyReply)

	StatFs(ctx context.Context, meta Meta, op *wire.StatFsOp, reply *StatfsReply)
	Access(ctx context.Context, meta Meta, op *wire.AccessOp, reply *EmptyReply)

	SetXAttr(ctx context.Context, meta Meta, op *wire.SetXAttrOp, reply *EmptyReply)
	GetXAttr(ctx context.Context, meta Meta, op *wire.GetXAttrOp, reply *XattrReply)
	ListXAttr(ctx context.Context, meta Meta, op *wire.ListXAttrOp, reply *XattrReply)
	RemoveXAttr(ctx context.Context, meta Meta, op *wire.RemoveXAttrOp, reply *EmptyReply)

	GetLk(ctx context.Context, meta Meta, op *wire.GetLkOp, reply *LockReply)
	// SetLk serves both SETLK and SETLKW; sleep is true for the latter.
	SetLk(ctx context.Context, meta Meta, op *wire.SetLkOp, sleep bool, reply *EmptyReply)

	BMap(ctx context.Context, meta Meta, op *wire.BMapOp, reply *BmapReply)
	IoCtl(ctx context.Context, meta Meta, op *wire.IoCtlOp, reply *IoctlReply)
	Poll(ctx context.Context, meta Meta, op *wire.PollOp, handle *PollHandle, reply *PollReply)
	FAllocate(ctx context.Context, meta Meta, op *wire.FAllocateOp, reply *EmptyReply)
	Lseek(ctx context.Context, meta Meta, op *wire.LseekOp, reply *LseekReply)
	CopyFileRange(ctx context.Context, meta Meta, op *wire.CopyFileRangeOp, reply *WriteReply)
}
