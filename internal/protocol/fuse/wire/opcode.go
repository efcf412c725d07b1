package wire

import "fmt"

// Opcode identifies a FUSE operation kind as assigned by the kernel.
type Opcode uint32

const (
	OpLookup        Opcode = 1
	OpForget        Opcode = 2 // no reply
	OpGetAttr       Opcode = 3
	OpSetAttr       Opcode = 4
	OpReadLink      Opcode = 5
	OpSymLink       Opcode = 6
	OpMkNod         Opcode = 8
	OpMkDir         Opcode = 9
	OpUnlink        Opcode = 10
	OpRmDir         Opcode = 11
	OpRename        Opcode = 12
	OpLink          Opcode = 13
	OpOpen          Opcode = 14
	OpRead          Opcode = 15
	OpWrite         Opcode = 16
	OpStatFs        Opcode = 17
	OpRelease       Opcode = 18
	OpFSync         Opcode = 20
	OpSetXAttr      Opcode = 21
	OpGetXAttr      Opcode = 22
	OpListXAttr     Opcode = 23
	OpRemoveXAttr   Opcode = 24
	OpFlush         Opcode = 25
	OpInit          Opcode = 26
	OpOpenDir       Opcode = 27
	OpReadDir       Opcode = 28
	OpReleaseDir    Opcode = 29
	OpFSyncDir      Opcode = 30
	OpGetLk         Opcode = 31
	OpSetLk         Opcode = 32
	OpSetLkW        Opcode = 33
	OpAccess        Opcode = 34
	OpCreate        Opcode = 35
	OpInterrupt     Opcode = 36
	OpBMap          Opcode = 37
	OpDestroy       Opcode = 38
	OpIoCtl         Opcode = 39
	OpPoll          Opcode = 40
	OpNotifyReply   Opcode = 41
	OpBatchForget   Opcode = 42 // no reply
	OpFAllocate     Opcode = 43
	OpReadDirPlus   Opcode = 44
	OpRename2       Opcode = 45
	OpLseek         Opcode = 46
	OpCopyFileRange Opcode = 47

	// macOS kernel extensions.
	OpSetVolName Opcode = 61
	OpGetXTimes  Opcode = 62
	OpExchange   Opcode = 63

	// Character-device (CUSE) session setup.
	OpCuseInit Opcode = 4096
)

var opcodeNames = map[Opcode]string{
	OpLookup:        "LOOKUP",
	OpForget:        "FORGET",
	OpGetAttr:       "GETATTR",
	OpSetAttr:       "SETATTR",
	OpReadLink:      "READLINK",
	OpSymLink:       "SYMLINK",
	OpMkNod:         "MKNOD",
	OpMkDir:         "MKDIR",
	OpUnlink:        "UNLINK",
	OpRmDir:         "RMDIR",
	OpRename:        "RENAME",
	OpLink:          "LINK",
	OpOpen:          "OPEN",
	OpRead:          "READ",
	OpWrite:         "WRITE",
	OpStatFs:        "STATFS",
	OpRelease:       "RELEASE",
	OpFSync:         "FSYNC",
	OpSetXAttr:      "SETXATTR",
	OpGetXAttr:      "GETXATTR",
	OpListXAttr:     "LISTXATTR",
	OpRemoveXAttr:   "REMOVEXATTR",
	OpFlush:         "FLUSH",
	OpInit:          "INIT",
	OpOpenDir:       "OPENDIR",
	OpReadDir:       "READDIR",
	OpReleaseDir:    "RELEASEDIR",
	OpFSyncDir:      "FSYNCDIR",
	OpGetLk:         "GETLK",
	OpSetLk:         "SETLK",
	OpSetLkW:        "SETLKW",
	OpAccess:        "ACCESS",
	OpCreate:        "CREATE",
	OpInterrupt:     "INTERRUPT",
	OpBMap:          "BMAP",
	OpDestroy:       "DESTROY",
	OpIoCtl:         "IOCTL",
	OpPoll:          "POLL",
	OpNotifyReply:   "NOTIFY_REPLY",
	OpBatchForget:   "BATCH_FORGET",
	OpFAllocate:     "FALLOCATE",
	OpReadDirPlus:   "READDIRPLUS",
	OpRename2:       "RENAME2",
	OpLseek:         "LSEEK",
	OpCopyFileRange: "COPY_FILE_RANGE",
	OpSetVolName:    "SETVOLNAME",
	OpGetXTimes:     "GETXTIMES",
	OpExchange:      "EXCHANGE",
	OpCuseInit:      "CUSE_INIT",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(o))
}
