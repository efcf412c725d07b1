package dbfs

import (
	"context"
	"syscall"
	"time"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
	"github.com/driftfs/driftfs/pkg/filesystem"
	"github.com/driftfs/driftfs/pkg/hooks"
	"github.com/driftfs/driftfs/pkg/metadata"
)

func (f *DBFS) Open(ctx context.Context, meta filesystem.Meta, op *wire.OpenOp, reply *filesystem.OpenReply) {
	inode, err := f.store.GetInode(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if inode.IsDir() {
		reply.Error(syscall.EISDIR)
		return
	}

	if op.Flags&syscall.O_TRUNC != 0 {
		if errno := f.truncate(ctx, inode, 0); errno != 0 {
			reply.Error(errno)
			return
		}
		now := time.Now()
		inode.Mtime = now
		inode.Ctime = now
		if err := f.store.UpdateInode(ctx, inode); err != nil {
			reply.Error(storeErrno(err))
			return
		}
	}
	reply.Opened(f.newHandle(inode.Ino), 0)
}

func (f *DBFS) Read(ctx context.Context, meta filesystem.Meta, op *wire.ReadOp, reply *filesystem.DataReply) {
	data, err := f.store.ReadData(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if op.Offset >= uint64(len(data)) {
		reply.Data(nil)
		return
	}
	end := op.Offset + uint64(op.Size)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	reply.Data(data[op.Offset:end])
}

func (f *DBFS) Write(ctx context.Context, meta filesystem.Meta, op *wire.WriteOp, reply *filesystem.WriteReply) {
	inode, err := f.store.GetInode(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}

	data, err := f.store.ReadData(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	end := op.Offset + uint64(len(op.Data))
	if end > uint64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[op.Offset:end], op.Data)

	if errno := f.runHooks(ctx, &hooks.Event{
		Op:   "write",
		Path: nodePath(meta.Node, ""),
		Size: uint64(len(data)),
		Data: data,
		UID:  meta.UID, GID: meta.GID, PID: meta.PID,
	}); errno != 0 {
		reply.Error(errno)
		return
	}

	if err := f.store.WriteData(ctx, meta.Node, data); err != nil {
		reply.Error(storeErrno(err))
		return
	}

	now := time.Now()
	inode.Size = uint64(len(data))
	inode.Mtime = now
	inode.Ctime = now
	if err := f.store.UpdateInode(ctx, inode); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	reply.Written(uint32(len(op.Data)))
}

func (f *DBFS) Flush(ctx context.Context, meta filesystem.Meta, op *wire.FlushOp, reply *filesystem.EmptyReply) {
	reply.Ok()
}

func (f *DBFS) Release(ctx context.Context, meta filesystem.Meta, op *wire.ReleaseOp, reply *filesystem.EmptyReply) {
	f.dropHandle(op.Fh)
	reply.Ok()
}

// FSync is trivially satisfied: the store commits every write before the
// reply goes out.
func (f *DBFS) FSync(ctx context.Context, meta filesystem.Meta, op *wire.FSyncOp, reply *filesystem.EmptyReply) {
	reply.Ok()
}

// truncate resizes the inline content and the inode size together.
func (f *DBFS) truncate(ctx context.Context, inode *metadata.Inode, size uint64) syscall.Errno {
	data, err := f.store.ReadData(ctx, inode.Ino)
	if err != nil {
		return storeErrno(err)
	}
	if uint64(len(data)) == size {
		inode.Size = size
		return 0
	}
	resized := make([]byte, size)
	copy(resized, data)
	if err := f.store.WriteData(ctx, inode.Ino, resized); err != nil {
		return storeErrno(err)
	}
	inode.Size = size
	return 0
}

// SEEK_DATA and SEEK_HOLE, the only whence values the kernel forwards.
const (
	seekData = 3
	seekHole = 4
)

func (f *DBFS) Lseek(ctx context.Context, meta filesystem.Meta, op *wire.LseekOp, reply *filesystem.LseekReply) {
	inode, err := f.store.GetInode(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if op.Offset >= inode.Size {
		reply.Error(syscall.ENXIO)
		return
	}
	switch op.Whence {
	case seekData:
		// Inline content has no holes.
		reply.Offset(op.Offset)
	case seekHole:
		reply.Offset(inode.Size)
	default:
		reply.Error(syscall.EINVAL)
	}
}

// fallocate mode bits.
const (
	fallocKeepSize  = 1 << 0
	fallocPunchHole = 1 << 1
)

func (f *DBFS) FAllocate(ctx context.Context, meta filesystem.Meta, op *wire.FAllocateOp, reply *filesystem.EmptyReply) {
	inode, err := f.store.GetInode(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}

	switch {
	case op.Mode == 0:
		end := op.Offset + op.Length
		if end > inode.Size {
			if errno := f.truncate(ctx, inode, end); errno != 0 {
				reply.Error(errno)
				return
			}
		}
	case op.Mode&fallocPunchHole != 0:
		data, err := f.store.ReadData(ctx, meta.Node)
		if err != nil {
			reply.Error(storeErrno(err))
			return
		}
		start := op.Offset
		end := op.Offset + op.Length
		if start < uint64(len(data)) {
			if end > uint64(len(data)) {
				end = uint64(len(data))
			}
			for i := start; i < end; i++ {
				data[i] = 0
			}
			if err := f.store.WriteData(ctx, meta.Node, data); err != nil {
				reply.Error(storeErrno(err))
				return
			}
		}
	default:
		reply.Error(syscall.EOPNOTSUPP)
		return
	}

	now := time.Now()
	inode.Mtime = now
	inode.Ctime = now
	if err := f.store.UpdateInode(ctx, inode); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	reply.Ok()
}

func (f *DBFS) CopyFileRange(ctx context.Context, meta filesystem.Meta, op *wire.CopyFileRangeOp, reply *filesystem.WriteReply) {
	src, err := f.store.ReadData(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if op.OffIn >= uint64(len(src)) {
		reply.Written(0)
		return
	}
	end := op.OffIn + op.Len
	if end > uint64(len(src)) {
		end = uint64(len(src))
	}
	chunk := src[op.OffIn:end]

	dst, err := f.store.ReadData(ctx, op.NodeIDOut)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	dstEnd := op.OffOut + uint64(len(chunk))
	if dstEnd > uint64(len(dst)) {
		grown := make([]byte, dstEnd)
		copy(grown, dst)
		dst = grown
	}
	copy(dst[op.OffOut:dstEnd], chunk)

	if err := f.store.WriteData(ctx, op.NodeIDOut, dst); err != nil {
		reply.Error(storeErrno(err))
		return
	}

	inode, err := f.store.GetInode(ctx, op.NodeIDOut)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	now := time.Now()
	inode.Size = uint64(len(dst))
	inode.Mtime = now
	inode.Ctime = now
	if err := f.store.UpdateInode(ctx, inode); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	reply.Written(uint32(len(chunk)))
}
