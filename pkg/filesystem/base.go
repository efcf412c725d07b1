package filesystem

import (
	"context"
	"syscall"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
)

// Base is a Filesystem that answers ENOSYS to everything. Backends embed it
// and override the operations they support.
type Base struct{}

var _ Filesystem = (*Base)(nil)

func (Base) Init(ctx context.Context, meta Meta, config *KernelConfig) syscall.Errno {
	return 0
}

func (Base) Destroy(ctx context.Context) {}

func (Base) Lookup(ctx context.Context, meta Meta, op *wire.LookupOp, reply *EntryReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Forget(ctx context.Context, meta Meta, op *wire.ForgetOp) {}

func (Base) BatchForget(ctx context.Context, meta Meta, op *wire.BatchForgetOp) {}

func (Base) GetAttr(ctx context.Context, meta Meta, op *wire.GetAttrOp, reply *AttrReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) SetAttr(ctx context.Context, meta Meta, op *wire.SetAttrOp, reply *AttrReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) ReadLink(ctx context.Context, meta Meta, op *wire.ReadLinkOp, reply *DataReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) MkNod(ctx context.Context, meta Meta, op *wire.MkNodOp, reply *EntryReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) MkDir(ctx context.Context, meta Meta, op *wire.MkDirOp, reply *EntryReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Unlink(ctx context.Context, meta Meta, op *wire.UnlinkOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) RmDir(ctx context.Context, meta Meta, op *wire.RmDirOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) SymLink(ctx context.Context, meta Meta, op *wire.SymLinkOp, reply *EntryReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Rename(ctx context.Context, meta Meta, op *wire.RenameOp, flags uint32, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Link(ctx context.Context, meta Meta, op *wire.LinkOp, reply *EntryReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Create(ctx context.Context, meta Meta, op *wire.CreateOp, reply *CreateReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Open(ctx context.Context, meta Meta, op *wire.OpenOp, reply *OpenReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Read(ctx context.Context, meta Meta, op *wire.ReadOp, reply *DataReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Write(ctx context.Context, meta Meta, op *wire.WriteOp, reply *WriteReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Flush(ctx context.Context, meta Meta, op *wire.FlushOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Release(ctx context.Context, meta Meta, op *wire.ReleaseOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) FSync(ctx context.Context, meta Meta, op *wire.FSyncOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) OpenDir(ctx context.Context, meta Meta, op *wire.OpenDirOp, reply *OpenReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) ReadDir(ctx context.Context, meta Meta, op *wire.ReadDirOp, reply *DirectoryReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) ReadDirPlus(ctx context.Context, meta Meta, op *wire.ReadDirPlusOp, reply *DirectoryPlusReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) ReleaseDir(ctx context.Context, meta Meta, op *wire.ReleaseDirOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) FSyncDir(ctx context.Context, meta Meta, op *wire.FSyncDirOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) StatFs(ctx context.Context, meta Meta, op *wire.StatFsOp, reply *StatfsReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Access(ctx context.Context, meta Meta, op *wire.AccessOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) SetXAttr(ctx context.Context, meta Meta, op *wire.SetXAttrOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) GetXAttr(ctx context.Context, meta Meta, op *wire.GetXAttrOp, reply *XattrReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) ListXAttr(ctx context.Context, meta Meta, op *wire.ListXAttrOp, reply *XattrReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) RemoveXAttr(ctx context.Context, meta Meta, op *wire.RemoveXAttrOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) GetLk(ctx context.Context, meta Meta, op *wire.GetLkOp, reply *LockReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) SetLk(ctx context.Context, meta Meta, op *wire.SetLkOp, sleep bool, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) BMap(ctx context.Context, meta Meta, op *wire.BMapOp, reply *BmapReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) IoCtl(ctx context.Context, meta Meta, op *wire.IoCtlOp, reply *IoctlReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Poll(ctx context.Context, meta Meta, op *wire.PollOp, handle *PollHandle, reply *PollReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) FAllocate(ctx context.Context, meta Meta, op *wire.FAllocateOp, reply *EmptyReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) Lseek(ctx context.Context, meta Meta, op *wire.LseekOp, reply *LseekReply) {
	reply.Error(syscall.ENOSYS)
}

func (Base) CopyFileRange(ctx context.Context, meta Meta, op *wire.CopyFileRangeOp, reply *WriteReply) {
	reply.Error(syscall.ENOSYS)
}
