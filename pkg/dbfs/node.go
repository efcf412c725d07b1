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

// makeNode creates an inode and links it into parent under name. On a name
// collision the orphaned inode is removed again.
func (f *DBFS) makeNode(ctx context.Context, meta filesystem.Meta, name string, mode, rdev uint32) (*metadata.Inode, syscall.Errno) {
	if len(name) > maxNameLen {
		return nil, syscall.ENAMETOOLONG
	}

	now := time.Now()
	nlink := uint32(1)
	if mode&0o170000 == 0o040000 {
		nlink = 2
	}
	inode := &metadata.Inode{
		Mode:  mode,
		Nlink: nlink,
		UID:   meta.UID,
		GID:   meta.GID,
		Rdev:  rdev,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
	if err := f.store.CreateInode(ctx, inode); err != nil {
		return nil, storeErrno(err)
	}

	dentry := &metadata.Dentry{ParentIno: meta.Node, Name: name, Ino: inode.Ino}
	if err := f.store.CreateDentry(ctx, dentry); err != nil {
		_ = f.store.DeleteInode(ctx, inode.Ino)
		return nil, storeErrno(err)
	}
	f.touch(ctx, meta.Node)
	return inode, 0
}

func (f *DBFS) MkNod(ctx context.Context, meta filesystem.Meta, op *wire.MkNodOp, reply *filesystem.EntryReply) {
	if errno := f.runHooks(ctx, &hooks.Event{
		Op:   "mknod",
		Path: nodePath(meta.Node, op.Name),
		UID:  meta.UID, GID: meta.GID, PID: meta.PID,
	}); errno != 0 {
		reply.Error(errno)
		return
	}
	inode, errno := f.makeNode(ctx, meta, op.Name, op.Mode&^op.Umask, op.Rdev)
	if errno != 0 {
		reply.Error(errno)
		return
	}
	reply.Entry(entryOut(inode))
}

func (f *DBFS) MkDir(ctx context.Context, meta filesystem.Meta, op *wire.MkDirOp, reply *filesystem.EntryReply) {
	mode := 0o040000 | op.Mode&^op.Umask&^uint32(0o170000)
	inode, errno := f.makeNode(ctx, meta, op.Name, mode, 0)
	if errno != 0 {
		reply.Error(errno)
		return
	}
	reply.Entry(entryOut(inode))
}

func (f *DBFS) Create(ctx context.Context, meta filesystem.Meta, op *wire.CreateOp, reply *filesystem.CreateReply) {
	if errno := f.runHooks(ctx, &hooks.Event{
		Op:   "create",
		Path: nodePath(meta.Node, op.Name),
		UID:  meta.UID, GID: meta.GID, PID: meta.PID,
	}); errno != 0 {
		reply.Error(errno)
		return
	}

	mode := 0o100000 | op.Mode&^op.Umask&^uint32(0o170000)
	inode, errno := f.makeNode(ctx, meta, op.Name, mode, 0)
	if errno != 0 {
		reply.Error(errno)
		return
	}
	fh := f.newHandle(inode.Ino)
	reply.Created(entryOut(inode), fh, 0)
}

func (f *DBFS) SymLink(ctx context.Context, meta filesystem.Meta, op *wire.SymLinkOp, reply *filesystem.EntryReply) {
	inode, errno := f.makeNode(ctx, meta, op.LinkName, 0o120777, 0)
	if errno != 0 {
		reply.Error(errno)
		return
	}
	if err := f.store.SetSymlink(ctx, inode.Ino, op.Target); err != nil {
		_ = f.store.DeleteDentry(ctx, meta.Node, op.LinkName)
		_ = f.store.DeleteInode(ctx, inode.Ino)
		reply.Error(storeErrno(err))
		return
	}
	inode.Size = uint64(len(op.Target))
	if err := f.store.UpdateInode(ctx, inode); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	reply.Entry(entryOut(inode))
}

func (f *DBFS) Link(ctx context.Context, meta filesystem.Meta, op *wire.LinkOp, reply *filesystem.EntryReply) {
	inode, err := f.store.GetInode(ctx, op.OldNode)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if inode.IsDir() {
		reply.Error(syscall.EPERM)
		return
	}
	dentry := &metadata.Dentry{ParentIno: meta.Node, Name: op.NewName, Ino: inode.Ino}
	if err := f.store.CreateDentry(ctx, dentry); err != nil {
		reply.Error(storeErrno(err))
		return
	}

	inode.Nlink++
	inode.Ctime = time.Now()
	if err := f.store.UpdateInode(ctx, inode); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	f.touch(ctx, meta.Node)
	reply.Entry(entryOut(inode))
}

func (f *DBFS) Unlink(ctx context.Context, meta filesystem.Meta, op *wire.UnlinkOp, reply *filesystem.EmptyReply) {
	inode, errno := f.child(ctx, meta.Node, op.Name)
	if errno != 0 {
		reply.Error(errno)
		return
	}
	if inode.IsDir() {
		reply.Error(syscall.EISDIR)
		return
	}
	if errno := f.removeName(ctx, meta.Node, op.Name, inode); errno != 0 {
		reply.Error(errno)
		return
	}
	reply.Ok()
}

func (f *DBFS) RmDir(ctx context.Context, meta filesystem.Meta, op *wire.RmDirOp, reply *filesystem.EmptyReply) {
	inode, errno := f.child(ctx, meta.Node, op.Name)
	if errno != 0 {
		reply.Error(errno)
		return
	}
	if !inode.IsDir() {
		reply.Error(syscall.ENOTDIR)
		return
	}
	count, err := f.store.CountDentries(ctx, inode.Ino)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if count > 0 {
		reply.Error(syscall.ENOTEMPTY)
		return
	}

	if err := f.store.DeleteDentry(ctx, meta.Node, op.Name); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if err := f.store.DeleteInode(ctx, inode.Ino); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	f.touch(ctx, meta.Node)
	reply.Ok()
}

// removeName drops one link to inode, deleting the inode and its content
// when the last link goes.
func (f *DBFS) removeName(ctx context.Context, parent uint64, name string, inode *metadata.Inode) syscall.Errno {
	if err := f.store.DeleteDentry(ctx, parent, name); err != nil {
		return storeErrno(err)
	}

	if inode.Nlink > 1 {
		inode.Nlink--
		inode.Ctime = time.Now()
		if err := f.store.UpdateInode(ctx, inode); err != nil {
			return storeErrno(err)
		}
	} else {
		if err := f.store.DeleteInode(ctx, inode.Ino); err != nil {
			return storeErrno(err)
		}
		if err := f.store.DeleteData(ctx, inode.Ino); err != nil && storeErrno(err) != syscall.ENOENT {
			return storeErrno(err)
		}
		if inode.IsSymlink() {
			if err := f.store.DeleteSymlink(ctx, inode.Ino); err != nil && storeErrno(err) != syscall.ENOENT {
				return storeErrno(err)
			}
		}
	}
	f.touch(ctx, parent)
	return 0
}

// Linux rename flags.
const (
	renameNoReplace = 1 << 0
	renameExchange  = 1 << 1
)

func (f *DBFS) Rename(ctx context.Context, meta filesystem.Meta, op *wire.RenameOp, flags uint32, reply *filesystem.EmptyReply) {
	if flags&^uint32(renameNoReplace|renameExchange) != 0 {
		reply.Error(syscall.EINVAL)
		return
	}
	if flags&renameExchange != 0 {
		f.exchange(ctx, meta.Node, op, reply)
		return
	}

	source, errno := f.child(ctx, meta.Node, op.OldName)
	if errno != 0 {
		reply.Error(errno)
		return
	}

	target, targetErrno := f.child(ctx, op.NewDir, op.NewName)
	if targetErrno == 0 {
		if flags&renameNoReplace != 0 {
			reply.Error(syscall.EEXIST)
			return
		}
		if target.IsDir() {
			count, err := f.store.CountDentries(ctx, target.Ino)
			if err != nil {
				reply.Error(storeErrno(err))
				return
			}
			if count > 0 {
				reply.Error(syscall.ENOTEMPTY)
				return
			}
			if err := f.store.DeleteDentry(ctx, op.NewDir, op.NewName); err != nil {
				reply.Error(storeErrno(err))
				return
			}
			if err := f.store.DeleteInode(ctx, target.Ino); err != nil {
				reply.Error(storeErrno(err))
				return
			}
		} else if errno := f.removeName(ctx, op.NewDir, op.NewName, target); errno != 0 {
			reply.Error(errno)
			return
		}
	} else if targetErrno != syscall.ENOENT {
		reply.Error(targetErrno)
		return
	}

	if err := f.store.DeleteDentry(ctx, meta.Node, op.OldName); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	dentry := &metadata.Dentry{ParentIno: op.NewDir, Name: op.NewName, Ino: source.Ino}
	if err := f.store.CreateDentry(ctx, dentry); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	f.touch(ctx, meta.Node)
	if op.NewDir != meta.Node {
		f.touch(ctx, op.NewDir)
	}
	reply.Ok()
}

// exchange atomically swaps two existing names (RENAME_EXCHANGE).
func (f *DBFS) exchange(ctx context.Context, oldDir uint64, op *wire.RenameOp, reply *filesystem.EmptyReply) {
	oldDentry, err := f.store.GetDentry(ctx, oldDir, op.OldName)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	newDentry, err := f.store.GetDentry(ctx, op.NewDir, op.NewName)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}

	if err := f.store.DeleteDentry(ctx, oldDir, op.OldName); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if err := f.store.DeleteDentry(ctx, op.NewDir, op.NewName); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if err := f.store.CreateDentry(ctx, &metadata.Dentry{
		ParentIno: oldDir, Name: op.OldName, Ino: newDentry.Ino,
	}); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if err := f.store.CreateDentry(ctx, &metadata.Dentry{
		ParentIno: op.NewDir, Name: op.NewName, Ino: oldDentry.Ino,
	}); err != nil {
		reply.Error(storeErrno(err))
		return
	}
	f.touch(ctx, oldDir)
	if op.NewDir != oldDir {
		f.touch(ctx, op.NewDir)
	}
	reply.Ok()
}
