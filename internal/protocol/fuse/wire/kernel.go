// Package wire defines the FUSE kernel wire protocol: the fixed-layout
// request/reply structures exchanged over /dev/fuse, the opcode table, and
// the decoding of raw kernel buffers into typed operations.
//
// All structures must match the kernel's fuse.h exactly for binary
// compatibility. Everything on the wire is little-endian and padded to
// 64-bit boundaries so 32-bit userspace works under 64-bit kernels.
package wire

// Version of the FUSE kernel interface this implementation speaks.
const (
	KernelVersion      = 7
	KernelMinorVersion = 31
)

// Minimum kernel protocol version accepted at INIT. Kernels older than
// 7.6 use incompatible structure layouts.
const (
	MinKernelVersion      = 7
	MinKernelMinorVersion = 6
)

// RootID is the node ID of the filesystem root.
const RootID = 1

// InHeader prefixes every request read from the kernel.
// Size: 40 bytes.
type InHeader struct {
	Len    uint32 // total message length, header included
	Opcode uint32
	Unique uint64 // request correlation id, echoed on the reply
	NodeID uint64 // target inode (0 for session-level operations)
	UID    uint32
	GID    uint32
	PID    uint32
	_      uint32
}

// InHeaderSize is the encoded size of InHeader.
const InHeaderSize = 40

// OutHeader prefixes every reply written to the kernel.
// Size: 16 bytes.
type OutHeader struct {
	Len    uint32 // total message length, header included
	Error  int32  // 0 on success, negative errno on failure
	Unique uint64
}

// OutHeaderSize is the encoded size of OutHeader.
const OutHeaderSize = 16

// Attr mirrors struct fuse_attr.
type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Nlink     uint32
	UID       uint32
	GID       uint32
	Rdev      uint32
	Blksize   uint32
	_         uint32
}

// StatFS mirrors struct fuse_kstatfs.
type StatFS struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	NameLen uint32
	Frsize  uint32
	_       uint32
	_       [6]uint32
}

// FileLock mirrors struct fuse_file_lock.
type FileLock struct {
	Start uint64
	End   uint64
	Type  uint32
	PID   uint32 // tgid
}

// Bitmasks for SetAttrIn.Valid.
const (
	FattrMode      = 1 << 0
	FattrUID       = 1 << 1
	FattrGID       = 1 << 2
	FattrSize      = 1 << 3
	FattrAtime     = 1 << 4
	FattrMtime     = 1 << 5
	FattrFh        = 1 << 6
	FattrAtimeNow  = 1 << 7
	FattrMtimeNow  = 1 << 8
	FattrLockOwner = 1 << 9
	FattrCtime     = 1 << 10
)

// Flags returned by the OPEN request.
const (
	FopenDirectIO    = 1 << 0
	FopenKeepCache   = 1 << 1
	FopenNonSeekable = 1 << 2
	FopenCacheDir    = 1 << 3
	FopenStream      = 1 << 4
)

// INIT request/reply capability flags.
const (
	InitAsyncRead        = 1 << 0
	InitPosixLocks       = 1 << 1
	InitFileOps          = 1 << 2
	InitAtomicOTrunc     = 1 << 3
	InitExportSupport    = 1 << 4
	InitBigWrites        = 1 << 5
	InitDontMask         = 1 << 6
	InitSpliceWrite      = 1 << 7
	InitSpliceMove       = 1 << 8
	InitSpliceRead       = 1 << 9
	InitFlockLocks       = 1 << 10
	InitHasIoctlDir      = 1 << 11
	InitAutoInvalData    = 1 << 12
	InitDoReadDirPlus    = 1 << 13
	InitReadDirPlusAuto  = 1 << 14
	InitAsyncDIO         = 1 << 15
	InitWritebackCache   = 1 << 16
	InitNoOpenSupport    = 1 << 17
	InitParallelDirops   = 1 << 18
	InitHandleKillPriv   = 1 << 19
	InitPosixACL         = 1 << 20
	InitAbortError       = 1 << 21
	InitMaxPages         = 1 << 22
	InitCacheSymlinks    = 1 << 23
	InitNoOpendirSupport = 1 << 24
	InitExplicitInval    = 1 << 25
)

// RELEASE flags.
const (
	ReleaseFlush       = 1 << 0
	ReleaseFlockUnlock = 1 << 1
)

// GETATTR flags.
const GetattrFh = 1 << 0

// Lock flags.
const LkFlock = 1 << 0

// WRITE flags.
const (
	WriteCache     = 1 << 0
	WriteLockOwner = 1 << 1
	WriteKillPriv  = 1 << 2
)

// READ flags.
const ReadLockOwner = 1 << 1

// IOCTL flags.
const (
	IoctlCompat       = 1 << 0
	IoctlUnrestricted = 1 << 1
	IoctlRetry        = 1 << 2
	Ioctl32Bit        = 1 << 3
	IoctlDir          = 1 << 4
	IoctlCompatX32    = 1 << 5
)

// POLL flags.
const PollScheduleNotify = 1 << 0

// FSYNC flags.
const FsyncFdatasync = 1 << 0

// The kernel requires the read buffer to be at least 8k.
const MinReadBuffer = 8192

// EntryOut mirrors struct fuse_entry_out.
type EntryOut struct {
	NodeID         uint64 // inode id
	Generation     uint64 // NodeID:Generation must be unique over the fs lifetime
	EntryValid     uint64 // cache timeout for the name
	AttrValid      uint64 // cache timeout for the attributes
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

// AttrOut mirrors struct fuse_attr_out.
type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	_             uint32
	Attr          Attr
}

// OpenOut mirrors struct fuse_open_out.
type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
	_         uint32
}

// WriteOut mirrors struct fuse_write_out.
type WriteOut struct {
	Size uint32
	_    uint32
}

// StatFSOut mirrors struct fuse_statfs_out.
type StatFSOut struct {
	St StatFS
}

// GetXAttrOut mirrors struct fuse_getxattr_out.
type GetXAttrOut struct {
	Size uint32
	_    uint32
}

// LkOut mirrors struct fuse_lk_out.
type LkOut struct {
	Lk FileLock
}

// BMapOut mirrors struct fuse_bmap_out.
type BMapOut struct {
	Block uint64
}

// IoctlOut mirrors struct fuse_ioctl_out.
type IoctlOut struct {
	Result  int32
	Flags   uint32
	InIovs  uint32
	OutIovs uint32
}

// PollOut mirrors struct fuse_poll_out.
type PollOut struct {
	Revents uint32
	_       uint32
}

// NotifyPollWakeupOut mirrors struct fuse_notify_poll_wakeup_out.
type NotifyPollWakeupOut struct {
	Kh uint64
}

// LseekOut mirrors struct fuse_lseek_out.
type LseekOut struct {
	Offset uint64
}

// InitOut mirrors struct fuse_init_out.
type InitOut struct {
	Major               uint32
	Minor               uint32
	MaxReadahead        uint32
	Flags               uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxWrite            uint32
	TimeGran            uint32
	MaxPages            uint16
	_                   uint16
	_                   [8]uint32
}

// CreateOut is the CREATE reply payload: a fuse_entry_out immediately
// followed by a fuse_open_out.
type CreateOut struct {
	Entry EntryOut
	Open  OpenOut
}

// Notification codes pushed by the daemon outside the request/reply flow.
const (
	NotifyPoll       = 1
	NotifyInvalInode = 2
	NotifyInvalEntry = 3
	NotifyStore      = 4
	NotifyRetrieve   = 5
	NotifyDelete     = 6
)

// direntAlign rounds a dirent record length up to an 8-byte boundary.
func direntAlign(n uint32) uint32 {
	return (n + 7) &^ 7
}

// direntSize is the fixed part of struct fuse_dirent before the name.
const direntSize = 24

// direntPlusSize is the fixed part of struct fuse_direntplus before the name
// (an EntryOut followed by a dirent header).
const direntPlusSize = 128 + direntSize
