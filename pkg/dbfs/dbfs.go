// Package dbfs is the database-backed DriftFS backend. Every inode, name
// and file byte lives in the metadata store, so the whole filesystem is one
// portable artifact that survives remounts and can be pushed to a remote.
package dbfs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
	"github.com/driftfs/driftfs/pkg/filesystem"
	"github.com/driftfs/driftfs/pkg/hooks"
	"github.com/driftfs/driftfs/pkg/metadata"
)

const (
	blockSize   = 4096
	maxNameLen  = 255
	attrTimeout = 1 // seconds the kernel may cache attributes and entries
)

// DBFS implements filesystem.Filesystem over a metadata.Store. Operations
// it has no use for (xattrs, locks, bmap, ioctl, poll) stay on the embedded
// Base and answer ENOSYS.
type DBFS struct {
	filesystem.Base

	store metadata.Store
	hooks *hooks.Engine

	maxWrite     uint32
	maxReadahead uint32

	mu      sync.Mutex
	handles map[uint64]uint64 // fh -> ino
	nextFh  uint64
}

var _ filesystem.Filesystem = (*DBFS)(nil)

// New returns a backend over store. engine may be nil to disable hooks.
func New(store metadata.Store, engine *hooks.Engine) *DBFS {
	return &DBFS{
		store:   store,
		hooks:   engine,
		handles: make(map[uint64]uint64),
	}
}

// SetTransferLimits overrides the write and readahead ceilings negotiated
// during Init. Zero leaves the default in place. Must be called before the
// filesystem is mounted.
func (f *DBFS) SetTransferLimits(maxWrite, maxReadahead uint32) {
	f.maxWrite = maxWrite
	f.maxReadahead = maxReadahead
}

// Init creates the root directory on first mount and negotiates the
// capabilities this backend benefits from.
func (f *DBFS) Init(ctx context.Context, meta filesystem.Meta, config *filesystem.KernelConfig) syscall.Errno {
	if err := f.store.EnsureRoot(ctx, meta.UID, meta.GID); err != nil {
		logger.Error("failed to initialize filesystem root", logger.KeyError, err.Error())
		return syscall.EIO
	}

	for _, cap := range []uint32{wire.InitBigWrites, wire.InitParallelDirops, wire.InitDoReadDirPlus} {
		if !config.Offered(cap) {
			continue
		}
		if err := config.AddCapabilities(cap); err != nil {
			logger.Warn("capability negotiation failed", logger.KeyError, err.Error())
		}
	}
	if f.maxWrite != 0 {
		if err := config.SetMaxWrite(f.maxWrite); err != nil {
			logger.Warn("rejected max write override", logger.KeyError, err.Error())
		}
	}
	if f.maxReadahead != 0 {
		if err := config.SetMaxReadahead(f.maxReadahead); err != nil {
			logger.Warn("rejected max readahead override", logger.KeyError, err.Error())
		}
	}
	return 0
}

// Destroy is a no-op: every mutation is already durable in the store.
func (f *DBFS) Destroy(ctx context.Context) {}

// Forget and BatchForget are no-ops: inode numbers are stable database keys
// and nothing is cached per lookup count.
func (f *DBFS) Forget(ctx context.Context, meta filesystem.Meta, op *wire.ForgetOp)           {}
func (f *DBFS) BatchForget(ctx context.Context, meta filesystem.Meta, op *wire.BatchForgetOp) {}

func (f *DBFS) Lookup(ctx context.Context, meta filesystem.Meta, op *wire.LookupOp, reply *filesystem.EntryReply) {
	inode, errno := f.child(ctx, meta.Node, op.Name)
	if errno != 0 {
		reply.Error(errno)
		return
	}
	reply.Entry(entryOut(inode))
}

func (f *DBFS) GetAttr(ctx context.Context, meta filesystem.Meta, op *wire.GetAttrOp, reply *filesystem.AttrReply) {
	inode, err := f.store.GetInode(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	reply.Attr(attrOut(inode))
}

func (f *DBFS) SetAttr(ctx context.Context, meta filesystem.Meta, op *wire.SetAttrOp, reply *filesystem.AttrReply) {
	inode, err := f.store.GetInode(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}

	now := time.Now()
	if op.Valid&wire.FattrMode != 0 {
		inode.Mode = inode.Mode&0o170000 | op.Mode&^0o170000
	}
	if op.Valid&wire.FattrUID != 0 {
		inode.UID = op.UID
	}
	if op.Valid&wire.FattrGID != 0 {
		inode.GID = op.GID
	}
	if op.Valid&wire.FattrSize != 0 {
		if errno := f.truncate(ctx, inode, op.Size); errno != 0 {
			reply.Error(errno)
			return
		}
		inode.Mtime = now
	}
	if op.Valid&wire.FattrAtime != 0 {
		inode.Atime = time.Unix(int64(op.Atime), int64(op.AtimeNsec))
	}
	if op.Valid&wire.FattrAtimeNow != 0 {
		inode.Atime = now
	}
	if op.Valid&wire.FattrMtime != 0 {
		inode.Mtime = time.Unix(int64(op.Mtime), int64(op.MtimeNsec))
	}
	if op.Valid&wire.FattrMtimeNow != 0 {
		inode.Mtime = now
	}
	if op.Valid&wire.FattrCtime != 0 {
		inode.Ctime = time.Unix(int64(op.Ctime), int64(op.CtimeNsec))
	} else {
		inode.Ctime = now
	}

	if err := f.store.UpdateInode(ctx, inode); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	reply.Attr(attrOut(inode))
}

func (f *DBFS) ReadLink(ctx context.Context, meta filesystem.Meta, op *wire.ReadLinkOp, reply *filesystem.DataReply) {
	target, err := f.store.GetSymlink(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	reply.Data([]byte(target))
}

func (f *DBFS) StatFs(ctx context.Context, meta filesystem.Meta, op *wire.StatFsOp, reply *filesystem.StatfsReply) {
	stats, err := f.store.Stats(ctx)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	reply.Statfs(&wire.StatFS{
		Blocks:  (stats.DataBytes + blockSize - 1) / blockSize,
		Files:   stats.Inodes,
		Bsize:   blockSize,
		Frsize:  blockSize,
		NameLen: maxNameLen,
	})
}

// Access checks classic mode-bit permissions. Root bypasses the check.
func (f *DBFS) Access(ctx context.Context, meta filesystem.Meta, op *wire.AccessOp, reply *filesystem.EmptyReply) {
	inode, err := f.store.GetInode(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if meta.UID == 0 {
		reply.Ok()
		return
	}

	var perms uint32
	switch {
	case meta.UID == inode.UID:
		perms = inode.Mode >> 6
	case meta.GID == inode.GID:
		perms = inode.Mode >> 3
	default:
		perms = inode.Mode
	}
	if op.Mask&^(perms&0o7) != 0 {
		reply.Error(syscall.EACCES)
		return
	}
	reply.Ok()
}

// child resolves one name inside parent to its inode.
func (f *DBFS) child(ctx context.Context, parent uint64, name string) (*metadata.Inode, syscall.Errno) {
	dentry, err := f.store.GetDentry(ctx, parent, name)
	if err != nil {
		return nil, storeErrno(err)
	}
	inode, err := f.store.GetInode(ctx, dentry.Ino)
	if err != nil {
		return nil, storeErrno(err)
	}
	return inode, 0
}

// touch refreshes the mtime and ctime of a directory after a namespace
// change. Failures are logged, not surfaced: the primary change already
// committed.
func (f *DBFS) touch(ctx context.Context, ino uint64) {
	inode, err := f.store.GetInode(ctx, ino)
	if err != nil {
		return
	}
	now := time.Now()
	inode.Mtime = now
	inode.Ctime = now
	if err := f.store.UpdateInode(ctx, inode); err != nil {
		logger.Warn("failed to update directory times",
			logger.KeyInodeID, ino, logger.KeyError, err.Error())
	}
}

// runHooks evaluates the hook engine for a mutation. A Block decision maps
// to EPERM.
func (f *DBFS) runHooks(ctx context.Context, ev *hooks.Event) syscall.Errno {
	if f.hooks == nil {
		return 0
	}
	if decision := f.hooks.Run(ctx, ev); !decision.Allowed() {
		return syscall.EPERM
	}
	return 0
}

func (f *DBFS) newHandle(ino uint64) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextFh++
	fh := f.nextFh
	f.handles[fh] = ino
	return fh
}

func (f *DBFS) dropHandle(fh uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handles, fh)
}

func attrFromInode(inode *metadata.Inode) wire.Attr {
	return wire.Attr{
		Ino:       inode.Ino,
		Size:      inode.Size,
		Blocks:    (inode.Size + 511) / 512,
		Atime:     uint64(inode.Atime.Unix()),
		Mtime:     uint64(inode.Mtime.Unix()),
		Ctime:     uint64(inode.Ctime.Unix()),
		AtimeNsec: uint32(inode.Atime.Nanosecond()),
		MtimeNsec: uint32(inode.Mtime.Nanosecond()),
		CtimeNsec: uint32(inode.Ctime.Nanosecond()),
		Mode:      inode.Mode,
		Nlink:     inode.Nlink,
		UID:       inode.UID,
		GID:       inode.GID,
		Rdev:      inode.Rdev,
		Blksize:   blockSize,
	}
}

func entryOut(inode *metadata.Inode) *wire.EntryOut {
	return &wire.EntryOut{
		NodeID:     inode.Ino,
		EntryValid: attrTimeout,
		AttrValid:  attrTimeout,
		Attr:       attrFromInode(inode),
	}
}

func attrOut(inode *metadata.Inode) *wire.AttrOut {
	return &wire.AttrOut{
		AttrValid: attrTimeout,
		Attr:      attrFromInode(inode),
	}
}

// storeErrno maps store sentinels onto POSIX errnos. Anything unexpected is
// logged and surfaces as EIO.
func storeErrno(err error) syscall.Errno {
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, metadata.ErrExists):
		return syscall.EEXIST
	case errors.Is(err, metadata.ErrNotEmpty):
		return syscall.ENOTEMPTY
	default:
		logger.Error("metadata store error", logger.KeyError, err.Error())
		return syscall.EIO
	}
}

func nodePath(ino uint64, name string) string {
	if name != "" {
		return fmt.Sprintf("%d/%s", ino, name)
	}
	return fmt.Sprintf("%d", ino)
}
