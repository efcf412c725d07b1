package wire

// Operation is the decoded, typed form of one kernel request. Exactly one
// concrete variant is produced per request; unknown opcodes fail decoding
// before any variant exists.
//
// The set of variants is closed: the dispatch layer switches over it
// exhaustively and treats anything else as a programming error.
type Operation interface {
	Opcode() Opcode
}

// ForgetItem is one lookup-count decrement inside a FORGET or BATCH_FORGET.
type ForgetItem struct {
	NodeID  uint64
	NLookup uint64
}

// InitOp carries the kernel's protocol offer.
type InitOp struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32 // kernel-offered capability bitmask
}

// DestroyOp ends the session.
type DestroyOp struct{}

// InterruptOp asks to abort an in-flight request. Not implemented.
type InterruptOp struct {
	Unique uint64
}

// NotifyReplyOp answers a NOTIFY_RETRIEVE push. Not implemented.
type NotifyReplyOp struct{}

// CuseInitOp starts a character-device session. Not implemented.
type CuseInitOp struct {
	Major uint32
	Minor uint32
	Flags uint32
}

type LookupOp struct {
	Name string
}

type ForgetOp struct {
	NLookup uint64
}

type BatchForgetOp struct {
	Items []ForgetItem
}

type GetAttrOp struct {
	Flags uint32
	Fh    uint64
}

// Handle returns the file handle if the kernel supplied one.
func (op *GetAttrOp) Handle() (uint64, bool) {
	return op.Fh, op.Flags&GetattrFh != 0
}

type SetAttrOp struct {
	Valid     uint32
	Fh        uint64
	Size      uint64
	LockOwner uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	UID       uint32
	GID       uint32
}

// Handle returns the file handle if FATTR_FH is set.
func (op *SetAttrOp) Handle() (uint64, bool) {
	return op.Fh, op.Valid&FattrFh != 0
}

type ReadLinkOp struct{}

type MkNodOp struct {
	Name  string
	Mode  uint32
	Rdev  uint32
	Umask uint32
}

type MkDirOp struct {
	Name  string
	Mode  uint32
	Umask uint32
}

type UnlinkOp struct {
	Name string
}

type RmDirOp struct {
	Name string
}

type SymLinkOp struct {
	LinkName string // name created in the parent directory
	Target   string // path the link points at
}

type RenameOp struct {
	NewDir  uint64
	OldName string
	NewName string
}

type Rename2Op struct {
	NewDir  uint64
	Flags   uint32
	OldName string
	NewName string
}

type LinkOp struct {
	OldNode uint64
	NewName string
}

type OpenOp struct {
	Flags uint32
}

type ReadOp struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
}

// Owner returns the lock owner if READ_LOCKOWNER is set.
func (op *ReadOp) Owner() (uint64, bool) {
	return op.LockOwner, op.ReadFlags&ReadLockOwner != 0
}

type WriteOp struct {
	Fh         uint64
	Offset     uint64
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	Data       []byte
}

// Owner returns the lock owner if WRITE_LOCKOWNER is set.
func (op *WriteOp) Owner() (uint64, bool) {
	return op.LockOwner, op.WriteFlags&WriteLockOwner != 0
}

type FlushOp struct {
	Fh        uint64
	LockOwner uint64
}

type ReleaseOp struct {
	Fh           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

// Flush reports whether the kernel requested a flush on release.
func (op *ReleaseOp) Flush() bool {
	return op.ReleaseFlags&ReleaseFlush != 0
}

// Owner returns the lock owner if FLOCK_UNLOCK is set.
func (op *ReleaseOp) Owner() (uint64, bool) {
	return op.LockOwner, op.ReleaseFlags&ReleaseFlockUnlock != 0
}

type FSyncOp struct {
	Fh         uint64
	FsyncFlags uint32
}

// DataSync reports whether only user data (not metadata) must be flushed.
func (op *FSyncOp) DataSync() bool {
	return op.FsyncFlags&FsyncFdatasync != 0
}

type OpenDirOp struct {
	Flags uint32
}

type ReadDirOp struct {
	Fh     uint64
	Offset uint64
	Size   uint32
}

type ReadDirPlusOp struct {
	Fh     uint64
	Offset uint64
	Size   uint32
}

type ReleaseDirOp struct {
	Fh    uint64
	Flags uint32
}

type FSyncDirOp struct {
	Fh         uint64
	FsyncFlags uint32
}

// DataSync reports whether only directory contents must be flushed.
func (op *FSyncDirOp) DataSync() bool {
	return op.FsyncFlags&FsyncFdatasync != 0
}

type StatFsOp struct{}

type SetXAttrOp struct {
	Name     string
	Value    []byte
	Flags    uint32
	Position uint32 // always 0 on Linux
}

type GetXAttrOp struct {
	Name string
	Size uint32
}

type ListXAttrOp struct {
	Size uint32
}

type RemoveXAttrOp struct {
	Name string
}

type AccessOp struct {
	Mask uint32
}

type CreateOp struct {
	Name  string
	Flags uint32
	Mode  uint32
	Umask uint32
}

type GetLkOp struct {
	Fh      uint64
	Owner   uint64
	Lock    FileLock
	LkFlags uint32
}

type SetLkOp struct {
	Fh      uint64
	Owner   uint64
	Lock    FileLock
	LkFlags uint32
}

// SetLkWOp is SETLK with blocking semantics.
type SetLkWOp struct {
	Fh      uint64
	Owner   uint64
	Lock    FileLock
	LkFlags uint32
}

type BMapOp struct {
	Block     uint64
	BlockSize uint32
}

type IoCtlOp struct {
	Fh      uint64
	Flags   uint32
	Cmd     uint32
	Arg     uint64
	InData  []byte
	OutSize uint32
}

// Unrestricted reports whether the kernel allows retried, unrestricted
// ioctl handling. Only restricted passthrough is supported.
func (op *IoCtlOp) Unrestricted() bool {
	return op.Flags&IoctlUnrestricted != 0
}

type PollOp struct {
	Fh     uint64
	Kh     uint64 // kernel's opaque poll token
	Flags  uint32
	Events uint32
}

type FAllocateOp struct {
	Fh     uint64
	Offset uint64
	Length uint64
	Mode   uint32
}

type LseekOp struct {
	Fh     uint64
	Offset uint64
	Whence uint32
}

type CopyFileRangeOp struct {
	FhIn      uint64
	OffIn     uint64
	NodeIDOut uint64
	FhOut     uint64
	OffOut    uint64
	Len       uint64
	Flags     uint64
}

func (*InitOp) Opcode() Opcode          { return OpInit }
func (*DestroyOp) Opcode() Opcode       { return OpDestroy }
func (*InterruptOp) Opcode() Opcode     { return OpInterrupt }
func (*NotifyReplyOp) Opcode() Opcode   { return OpNotifyReply }
func (*CuseInitOp) Opcode() Opcode      { return OpCuseInit }
func (*LookupOp) Opcode() Opcode        { return OpLookup }
func (*ForgetOp) Opcode() Opcode        { return OpForget }
func (*BatchForgetOp) Opcode() Opcode   { return OpBatchForget }
func (*GetAttrOp) Opcode() Opcode       { return OpGetAttr }
func (*SetAttrOp) Opcode() Opcode       { return OpSetAttr }
func (*ReadLinkOp) Opcode() Opcode      { return OpReadLink }
func (*MkNodOp) Opcode() Opcode         { return OpMkNod }
func (*MkDirOp) Opcode() Opcode         { return OpMkDir }
func (*UnlinkOp) Opcode() Opcode        { return OpUnlink }
func (*RmDirOp) Opcode() Opcode         { return OpRmDir }
func (*SymLinkOp) Opcode() Opcode       { return OpSymLink }
func (*RenameOp) Opcode() Opcode        { return OpRename }
func (*Rename2Op) Opcode() Opcode       { return OpRename2 }
func (*LinkOp) Opcode() Opcode          { return OpLink }
func (*OpenOp) Opcode() Opcode          { return OpOpen }
func (*ReadOp) Opcode() Opcode          { return OpRead }
func (*WriteOp) Opcode() Opcode         { return OpWrite }
func (*FlushOp) Opcode() Opcode         { return OpFlush }
func (*ReleaseOp) Opcode() Opcode       { return OpRelease }
func (*FSyncOp) Opcode() Opcode         { return OpFSync }
func (*OpenDirOp) Opcode() Opcode       { return OpOpenDir }
func (*ReadDirOp) Opcode() Opcode       { return OpReadDir }
func (*ReadDirPlusOp) Opcode() Opcode   { return OpReadDirPlus }
func (*ReleaseDirOp) Opcode() Opcode    { return OpReleaseDir }
func (*FSyncDirOp) Opcode() Opcode      { return OpFSyncDir }
func (*StatFsOp) Opcode() Opcode        { return OpStatFs }
func (*SetXAttrOp) Opcode() Opcode      { return OpSetXAttr }
func (*GetXAttrOp) Opcode() Opcode      { return OpGetXAttr }
func (*ListXAttrOp) Opcode() Opcode     { return OpListXAttr }
func (*RemoveXAttrOp) Opcode() Opcode   { return OpRemoveXAttr }
func (*AccessOp) Opcode() Opcode        { return OpAccess }
func (*CreateOp) Opcode() Opcode        { return OpCreate }
func (*GetLkOp) Opcode() Opcode         { return OpGetLk }
func (*SetLkOp) Opcode() Opcode         { return OpSetLk }
func (*SetLkWOp) Opcode() Opcode        { return OpSetLkW }
func (*BMapOp) Opcode() Opcode          { return OpBMap }
func (*IoCtlOp) Opcode() Opcode         { return OpIoCtl }
func (*PollOp) Opcode() Opcode          { return OpPoll }
func (*FAllocateOp) Opcode() Opcode     { return OpFAllocate }
func (*LseekOp) Opcode() Opcode         { return OpLseek }
func (*CopyFileRangeOp) Opcode() Opcode { return OpCopyFileRange }
