package dbfs

import (
	"context"
	"sort"
	"syscall"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
	"github.com/driftfs/driftfs/pkg/filesystem"
	"github.com/driftfs/driftfs/pkg/metadata"
)

func (f *DBFS) OpenDir(ctx context.Context, meta filesystem.Meta, op *wire.OpenDirOp, reply *filesystem.OpenReply) {
	inode, err := f.store.GetInode(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}
	if !inode.IsDir() {
		reply.Error(syscall.ENOTDIR)
		return
	}
	reply.Opened(f.newHandle(inode.Ino), 0)
}

// listing is the stable entry order for one readdir pass: ".", "..", then
// the children sorted by name. The kernel's continuation offset indexes
// into this slice.
func (f *DBFS) listing(ctx context.Context, dir uint64) ([]metadata.Dentry, error) {
	children, err := f.store.ListDentries(ctx, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

	entries := make([]metadata.Dentry, 0, len(children)+2)
	entries = append(entries,
		metadata.Dentry{Name: ".", Ino: dir},
		metadata.Dentry{Name: "..", Ino: dir},
	)
	return append(entries, children...), nil
}

func (f *DBFS) ReadDir(ctx context.Context, meta filesystem.Meta, op *wire.ReadDirOp, reply *filesystem.DirectoryReply) {
	entries, err := f.listing(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}

	for i := int(op.Offset); i < len(entries); i++ {
		entry := entries[i]
		typ := uint32(4) // DT_DIR for the synthetic dot entries
		if entry.Name != "." && entry.Name != ".." {
			inode, err := f.store.GetInode(ctx, entry.Ino)
			if err != nil {
				reply.Error(storeErrno(err))
				return
			}
			typ = inode.Mode >> 12
		}
		if reply.Add(entry.Ino, uint64(i+1), typ, entry.Name) {
			break
		}
	}
	reply.Ok()
}

func (f *DBFS) ReadDirPlus(ctx context.Context, meta filesystem.Meta, op *wire.ReadDirPlusOp, reply *filesystem.DirectoryPlusReply) {
	entries, err := f.listing(ctx, meta.Node)
	if err != nil {
		reply.Error(storeErrno(err))
		return
	}

	for i := int(op.Offset); i < len(entries); i++ {
		entry := entries[i]
		inode, err := f.store.GetInode(ctx, entry.Ino)
		if err != nil {
			reply.Error(storeErrno(err))
			return
		}
		out := entryOut(inode)
		if entry.Name == "." || entry.Name == ".." {
			// Dot entries carry attributes but must not bump any lookup
			// count, signalled by a zero node id.
			out.NodeID = 0
		}
		if reply.Add(out, uint64(i+1), inode.Mode>>12, entry.Name) {
			break
		}
	}
	reply.Ok()
}

func (f *DBFS) ReleaseDir(ctx context.Context, meta filesystem.Meta, op *wire.ReleaseDirOp, reply *filesystem.EmptyReply) {
	f.dropHandle(op.Fh)
	reply.Ok()
}

func (f *DBFS) FSyncDir(ctx context.Context, meta filesystem.Meta, op *wire.FSyncDirOp, reply *filesystem.EmptyReply) {
	reply.Ok()
}
