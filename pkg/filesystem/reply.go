package filesystem

import (
	"syscall"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
)

// ReplySender writes one framed reply buffer back to the kernel. The
// dispatch engine injects the device channel; tests inject recorders.
type ReplySender interface {
	Send(buf []byte) error
}

// reply is the shared single-use state of every replier. The first call to
// any terminal method consumes it; later calls are logged and dropped, so a
// buggy backend can never answer a request twice.
type reply struct {
	unique uint64
	sender ReplySender
	done   bool
}

func newReply(unique uint64, sender ReplySender) reply {
	return reply{unique: unique, sender: sender}
}

func (r *reply) send(buf []byte) {
	if r.done {
		logger.Warn("duplicate reply dropped", logger.KeyRequestID, r.unique)
		return
	}
	r.done = true
	if err := r.sender.Send(buf); err != nil {
		logger.Error("failed to send reply to kernel",
			logger.KeyRequestID, r.unique, logger.KeyError, err.Error())
	}
}

func (r *reply) payload(out any, data []byte) {
	buf, err := wire.EncodeReply(r.unique, out, data)
	if err != nil {
		// Encoding only fails on a non-fixed-layout payload, which is a
		// programming error. Consume the reply so the invariant holds and
		// let the kernel time the request out.
		r.done = true
		logger.Error("failed to encode reply", logger.KeyRequestID, r.unique,
			logger.KeyError, err.Error())
		return
	}
	r.send(buf)
}

// Error answers the request with a negative errno.
func (r *reply) Error(errno syscall.Errno) {
	r.send(wire.EncodeError(r.unique, int32(errno)))
}

// EmptyReply answers operations whose success carries no payload.
type EmptyReply struct{ reply }

func NewEmptyReply(unique uint64, sender ReplySender) *EmptyReply {
	return &EmptyReply{newReply(unique, sender)}
}

func (r *EmptyReply) Ok() { r.payload(nil, nil) }

// EntryReply answers lookup-like operations with a directory entry.
type EntryReply struct{ reply }

func NewEntryReply(unique uint64, sender ReplySender) *EntryReply {
	return &EntryReply{newReply(unique, sender)}
}

func (r *EntryReply) Entry(entry *wire.EntryOut) { r.payload(entry, nil) }

// AttrReply answers GETATTR and SETATTR.
type AttrReply struct{ reply }

func NewAttrReply(unique uint64, sender ReplySender) *AttrReply {
	return &AttrReply{newReply(unique, sender)}
}

func (r *AttrReply) Attr(attr *wire.AttrOut) { r.payload(attr, nil) }

// DataReply answers READ and READLINK with raw bytes.
type DataReply struct{ reply }

func NewDataReply(unique uint64, sender ReplySender) *DataReply {
	return &DataReply{newReply(unique, sender)}
}

func (r *DataReply) Data(data []byte) { r.payload(nil, data) }

// OpenReply answers OPEN and OPENDIR.
type OpenReply struct{ reply }

func NewOpenReply(unique uint64, sender ReplySender) *OpenReply {
	return &OpenReply{newReply(unique, sender)}
}

func (r *OpenReply) Opened(fh uint64, openFlags uint32) {
	r.payload(&wire.OpenOut{Fh: fh, OpenFlags: openFlags}, nil)
}

// CreateReply answers CREATE with both the new entry and the open handle.
type CreateReply struct{ reply }

func NewCreateReply(unique uint64, sender ReplySender) *CreateReply {
	return &CreateReply{newReply(unique, sender)}
}

func (r *CreateReply) Created(entry *wire.EntryOut, fh uint64, openFlags uint32) {
	r.payload(&wire.CreateOut{
		Entry: *entry,
		Open:  wire.OpenOut{Fh: fh, OpenFlags: openFlags},
	}, nil)
}

// WriteReply answers WRITE and COPY_FILE_RANGE with a byte count.
type WriteReply struct{ reply }

func NewWriteReply(unique uint64, sender ReplySender) *WriteReply {
	return &WriteReply{newReply(unique, sender)}
}

func (r *WriteReply) Written(n uint32) { r.payload(&wire.WriteOut{Size: n}, nil) }

// StatfsReply answers STATFS.
type StatfsReply struct{ reply }

func NewStatfsReply(unique uint64, sender ReplySender) *StatfsReply {
	return &StatfsReply{newReply(unique, sender)}
}

func (r *StatfsReply) Statfs(st *wire.StatFS) { r.payload(&wire.StatFSOut{St: *st}, nil) }

// XattrReply answers GETXATTR and LISTXATTR, which have a two-phase shape:
// size probe (Size) then data fetch (Data).
type XattrReply struct{ reply }

func NewXattrReply(unique uint64, sender ReplySender) *XattrReply {
	return &XattrReply{newReply(unique, sender)}
}

func (r *XattrReply) Size(n uint32) { r.payload(&wire.GetXAttrOut{Size: n}, nil) }
func (r *XattrReply) Data(b []byte) { r.payload(nil, b) }

// LockReply answers GETLK.
type LockReply struct{ reply }

func NewLockReply(unique uint64, sender ReplySender) *LockReply {
	return &LockReply{newReply(unique, sender)}
}

func (r *LockReply) Lock(lk *wire.FileLock) { r.payload(&wire.LkOut{Lk: *lk}, nil) }

// BmapReply answers BMAP.
type BmapReply struct{ reply }

func NewBmapReply(unique uint64, sender ReplySender) *BmapReply {
	return &BmapReply{newReply(unique, sender)}
}

func (r *BmapReply) Block(block uint64) { r.payload(&wire.BMapOut{Block: block}, nil) }

// IoctlReply answers restricted IOCTL passthrough.
type IoctlReply struct{ reply }

func NewIoctlReply(unique uint64, sender ReplySender) *IoctlReply {
	return &IoctlReply{newReply(unique, sender)}
}

func (r *IoctlReply) Ioctl(result int32, data []byte) {
	r.payload(&wire.IoctlOut{Result: result}, data)
}

// PollReply answers POLL with the ready event mask.
type PollReply struct{ reply }

func NewPollReply(unique uint64, sender ReplySender) *PollReply {
	return &PollReply{newReply(unique, sender)}
}

func (r *PollReply) Ready(revents uint32) { r.payload(&wire.PollOut{Revents: revents}, nil) }

// LseekReply answers LSEEK.
type LseekReply struct{ reply }

func NewLseekReply(unique uint64, sender ReplySender) *LseekReply {
	return &LseekReply{newReply(unique, sender)}
}

func (r *LseekReply) Offset(off uint64) { r.payload(&wire.LseekOut{Offset: off}, nil) }

// DirectoryReply streams READDIR entries into a buffer bounded by the size
// the kernel asked for. Add reports true when the entry did not fit, at
// which point the backend calls Ok with what accumulated so far.
type DirectoryReply struct {
	reply
	buf []byte
	max int
}

func NewDirectoryReply(unique uint64, sender ReplySender, size uint32) *DirectoryReply {
	return &DirectoryReply{reply: newReply(unique, sender), max: int(size)}
}

// Add packs one entry. offset is the continuation cookie the kernel will
// send back to resume after this entry.
func (r *DirectoryReply) Add(ino uint64, offset uint64, typ uint32, name string) bool {
	if len(r.buf)+int(wire.DirentEntrySize(name)) > r.max {
		return true
	}
	r.buf = wire.AppendDirent(r.buf, ino, offset, typ, name)
	return false
}

func (r *DirectoryReply) Ok() { r.payload(nil, r.buf) }

// DirectoryPlusReply streams READDIRPLUS entries, each carrying the full
// entry attributes alongside the dirent record.
type DirectoryPlusReply struct {
	reply
	buf []byte
	max int
}

func NewDirectoryPlusReply(unique uint64, sender ReplySender, size uint32) *DirectoryPlusReply {
	return &DirectoryPlusReply{reply: newReply(unique, sender), max: int(size)}
}

func (r *DirectoryPlusReply) Add(entry *wire.EntryOut, offset uint64, typ uint32, name string) bool {
	if len(r.buf)+int(wire.DirentPlusEntrySize(name)) > r.max {
		return true
	}
	r.buf = wire.AppendDirentPlus(r.buf, entry, offset, typ, name)
	return false
}

func (r *DirectoryPlusReply) Ok() { r.payload(nil, r.buf) }
