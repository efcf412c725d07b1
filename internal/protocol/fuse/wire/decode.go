package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// DecodeError reports a malformed or unrecognized kernel buffer. Requests
// that fail decoding are dropped without a reply.
type DecodeError struct {
	Opcode Opcode
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("fuse: cannot decode %s request: %s", e.Opcode, e.Reason)
}

// Request is one decoded kernel request: the fixed header plus exactly one
// typed operation variant. It lives only for the duration of one dispatch.
type Request struct {
	Header InHeader
	Op     Operation
}

func (r *Request) String() string {
	return fmt.Sprintf("%s unique=%d node=%d uid=%d gid=%d pid=%d",
		Opcode(r.Header.Opcode), r.Header.Unique, r.Header.NodeID,
		r.Header.UID, r.Header.GID, r.Header.PID)
}

// ParseRequest decodes a raw buffer read from the kernel device into a
// typed request. It fails on short buffers, length mismatches, unknown
// opcodes and truncated payloads; it never panics on malformed input.
func ParseRequest(buf []byte) (*Request, error) {
	if len(buf) < InHeaderSize {
		return nil, &DecodeError{Reason: fmt.Sprintf("buffer too short for header: %d bytes", len(buf))}
	}

	var hdr InHeader
	if err := binary.Read(bytes.NewReader(buf[:InHeaderSize]), binary.LittleEndian, &hdr); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	if int(hdr.Len) != len(buf) {
		return nil, &DecodeError{
			Opcode: Opcode(hdr.Opcode),
			Reason: fmt.Sprintf("header length %d does not match buffer length %d", hdr.Len, len(buf)),
		}
	}

	d := &decoder{buf: buf[InHeaderSize:], opcode: Opcode(hdr.Opcode)}
	op, err := decodeOperation(Opcode(hdr.Opcode), d)
	if err != nil {
		return nil, err
	}
	return &Request{Header: hdr, Op: op}, nil
}

// decoder is a cursor over one request payload.
type decoder struct {
	buf    []byte
	opcode Opcode
}

func (d *decoder) fail(reason string) error {
	return &DecodeError{Opcode: d.opcode, Reason: reason}
}

func (d *decoder) u32() (uint32, error) {
	if len(d.buf) < 4 {
		return 0, d.fail("truncated payload")
	}
	v := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if len(d.buf) < 8 {
		return 0, d.fail("truncated payload")
	}
	v := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	return v, nil
}

// skip discards n bytes of padding.
func (d *decoder) skip(n int) error {
	if len(d.buf) < n {
		return d.fail("truncated payload")
	}
	d.buf = d.buf[n:]
	return nil
}

// strct decodes a fixed-layout wire structure.
func (d *decoder) strct(v any) error {
	n := binary.Size(v)
	if n < 0 || len(d.buf) < n {
		return d.fail("truncated payload")
	}
	if err := binary.Read(bytes.NewReader(d.buf[:n]), binary.LittleEndian, v); err != nil {
		return d.fail(err.Error())
	}
	d.buf = d.buf[n:]
	return nil
}

// cstring consumes a NUL-terminated name.
func (d *decoder) cstring() (string, error) {
	i := bytes.IndexByte(d.buf, 0)
	if i < 0 {
		return "", d.fail("unterminated string")
	}
	s := string(d.buf[:i])
	d.buf = d.buf[i+1:]
	return s, nil
}

// rest consumes the remaining payload bytes.
func (d *decoder) rest() []byte {
	b := d.buf
	d.buf = nil
	return b
}

// take consumes exactly n bytes.
func (d *decoder) take(n int) ([]byte, error) {
	if len(d.buf) < n {
		return nil, d.fail("truncated payload")
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b, nil
}

func decodeOperation(opcode Opcode, d *decoder) (Operation, error) {
	switch opcode {
	case OpInit:
		op := &InitOp{}
		var err error
		if op.Major, err = d.u32(); err != nil {
			return nil, err
		}
		if op.Minor, err = d.u32(); err != nil {
			return nil, err
		}
		if op.MaxReadahead, err = d.u32(); err != nil {
			return nil, err
		}
		if op.Flags, err = d.u32(); err != nil {
			return nil, err
		}
		return op, nil

	case OpDestroy:
		return &DestroyOp{}, nil

	case OpInterrupt:
		unique, err := d.u64()
		if err != nil {
			return nil, err
		}
		return &InterruptOp{Unique: unique}, nil

	case OpNotifyReply:
		return &NotifyReplyOp{}, nil

	case OpCuseInit:
		op := &CuseInitOp{}
		var err error
		if op.Major, err = d.u32(); err != nil {
			return nil, err
		}
		if op.Minor, err = d.u32(); err != nil {
			return nil, err
		}
		if err = d.skip(4); err != nil {
			return nil, err
		}
		if op.Flags, err = d.u32(); err != nil {
			return nil, err
		}
		return op, nil

	case OpLookup:
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &LookupOp{Name: name}, nil

	case OpForget:
		nlookup, err := d.u64()
		if err != nil {
			return nil, err
		}
		return &ForgetOp{NLookup: nlookup}, nil

	case OpBatchForget:
		count, err := d.u32()
		if err != nil {
			return nil, err
		}
		if err := d.skip(4); err != nil {
			return nil, err
		}
		items := make([]ForgetItem, 0, count)
		for i := uint32(0); i < count; i++ {
			node, err := d.u64()
			if err != nil {
				return nil, err
			}
			nlookup, err := d.u64()
			if err != nil {
				return nil, err
			}
			items = append(items, ForgetItem{NodeID: node, NLookup: nlookup})
		}
		return &BatchForgetOp{Items: items}, nil

	case OpGetAttr:
		op := &GetAttrOp{}
		var err error
		if op.Flags, err = d.u32(); err != nil {
			return nil, err
		}
		if err = d.skip(4); err != nil {
			return nil, err
		}
		if op.Fh, err = d.u64(); err != nil {
			return nil, err
		}
		return op, nil

	case OpSetAttr:
		var in struct {
			Valid     uint32
			_         uint32
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
			_         uint32
			UID       uint32
			GID       uint32
			_         uint32
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		return &SetAttrOp{
			Valid: in.Valid, Fh: in.Fh, Size: in.Size, LockOwner: in.LockOwner,
			Atime: in.Atime, Mtime: in.Mtime, Ctime: in.Ctime,
			AtimeNsec: in.AtimeNsec, MtimeNsec: in.MtimeNsec, CtimeNsec: in.CtimeNsec,
			Mode: in.Mode, UID: in.UID, GID: in.GID,
		}, nil

	case OpReadLink:
		return &ReadLinkOp{}, nil

	case OpMkNod:
		op := &MkNodOp{}
		var err error
		if op.Mode, err = d.u32(); err != nil {
			return nil, err
		}
		if op.Rdev, err = d.u32(); err != nil {
			return nil, err
		}
		if op.Umask, err = d.u32(); err != nil {
			return nil, err
		}
		if err = d.skip(4); err != nil {
			return nil, err
		}
		if op.Name, err = d.cstring(); err != nil {
			return nil, err
		}
		return op, nil

	case OpMkDir:
		op := &MkDirOp{}
		var err error
		if op.Mode, err = d.u32(); err != nil {
			return nil, err
		}
		if op.Umask, err = d.u32(); err != nil {
			return nil, err
		}
		if op.Name, err = d.cstring(); err != nil {
			return nil, err
		}
		return op, nil

	case OpUnlink:
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &UnlinkOp{Name: name}, nil

	case OpRmDir:
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &RmDirOp{Name: name}, nil

	case OpSymLink:
		linkName, err := d.cstring()
		if err != nil {
			return nil, err
		}
		target, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &SymLinkOp{LinkName: linkName, Target: target}, nil

	case OpRename:
		newdir, err := d.u64()
		if err != nil {
			return nil, err
		}
		oldName, err := d.cstring()
		if err != nil {
			return nil, err
		}
		newName, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &RenameOp{NewDir: newdir, OldName: oldName, NewName: newName}, nil

	case OpRename2:
		op := &Rename2Op{}
		var err error
		if op.NewDir, err = d.u64(); err != nil {
			return nil, err
		}
		if op.Flags, err = d.u32(); err != nil {
			return nil, err
		}
		if err = d.skip(4); err != nil {
			return nil, err
		}
		if op.OldName, err = d.cstring(); err != nil {
			return nil, err
		}
		if op.NewName, err = d.cstring(); err != nil {
			return nil, err
		}
		return op, nil

	case OpLink:
		oldnode, err := d.u64()
		if err != nil {
			return nil, err
		}
		newName, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &LinkOp{OldNode: oldnode, NewName: newName}, nil

	case OpOpen:
		flags, err := d.u32()
		if err != nil {
			return nil, err
		}
		return &OpenOp{Flags: flags}, nil

	case OpOpenDir:
		flags, err := d.u32()
		if err != nil {
			return nil, err
		}
		return &OpenDirOp{Flags: flags}, nil

	case OpRead, OpReadDir, OpReadDirPlus:
		var in struct {
			Fh        uint64
			Offset    uint64
			Size      uint32
			ReadFlags uint32
			LockOwner uint64
			Flags     uint32
			_         uint32
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		switch opcode {
		case OpReadDir:
			return &ReadDirOp{Fh: in.Fh, Offset: in.Offset, Size: in.Size}, nil
		case OpReadDirPlus:
			return &ReadDirPlusOp{Fh: in.Fh, Offset: in.Offset, Size: in.Size}, nil
		default:
			return &ReadOp{
				Fh: in.Fh, Offset: in.Offset, Size: in.Size,
				ReadFlags: in.ReadFlags, LockOwner: in.LockOwner, Flags: in.Flags,
			}, nil
		}

	case OpWrite:
		var in struct {
			Fh         uint64
			Offset     uint64
			Size       uint32
			WriteFlags uint32
			LockOwner  uint64
			Flags      uint32
			_          uint32
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		data, err := d.take(int(in.Size))
		if err != nil {
			return nil, err
		}
		return &WriteOp{
			Fh: in.Fh, Offset: in.Offset, WriteFlags: in.WriteFlags,
			LockOwner: in.LockOwner, Flags: in.Flags, Data: data,
		}, nil

	case OpFlush:
		op := &FlushOp{}
		var err error
		if op.Fh, err = d.u64(); err != nil {
			return nil, err
		}
		if err = d.skip(8); err != nil {
			return nil, err
		}
		if op.LockOwner, err = d.u64(); err != nil {
			return nil, err
		}
		return op, nil

	case OpRelease, OpReleaseDir:
		var in struct {
			Fh           uint64
			Flags        uint32
			ReleaseFlags uint32
			LockOwner    uint64
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		if opcode == OpReleaseDir {
			return &ReleaseDirOp{Fh: in.Fh, Flags: in.Flags}, nil
		}
		return &ReleaseOp{
			Fh: in.Fh, Flags: in.Flags,
			ReleaseFlags: in.ReleaseFlags, LockOwner: in.LockOwner,
		}, nil

	case OpFSync, OpFSyncDir:
		fh, err := d.u64()
		if err != nil {
			return nil, err
		}
		flags, err := d.u32()
		if err != nil {
			return nil, err
		}
		if opcode == OpFSyncDir {
			return &FSyncDirOp{Fh: fh, FsyncFlags: flags}, nil
		}
		return &FSyncOp{Fh: fh, FsyncFlags: flags}, nil

	case OpStatFs:
		return &StatFsOp{}, nil

	case OpSetXAttr:
		size, err := d.u32()
		if err != nil {
			return nil, err
		}
		flags, err := d.u32()
		if err != nil {
			return nil, err
		}
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		value, err := d.take(int(size))
		if err != nil {
			return nil, err
		}
		return &SetXAttrOp{Name: name, Value: value, Flags: flags}, nil

	case OpGetXAttr:
		size, err := d.u32()
		if err != nil {
			return nil, err
		}
		if err := d.skip(4); err != nil {
			return nil, err
		}
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &GetXAttrOp{Name: name, Size: size}, nil

	case OpListXAttr:
		size, err := d.u32()
		if err != nil {
			return nil, err
		}
		return &ListXAttrOp{Size: size}, nil

	case OpRemoveXAttr:
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &RemoveXAttrOp{Name: name}, nil

	case OpAccess:
		mask, err := d.u32()
		if err != nil {
			return nil, err
		}
		return &AccessOp{Mask: mask}, nil

	case OpCreate:
		op := &CreateOp{}
		var err error
		if op.Flags, err = d.u32(); err != nil {
			return nil, err
		}
		if op.Mode, err = d.u32(); err != nil {
			return nil, err
		}
		if op.Umask, err = d.u32(); err != nil {
			return nil, err
		}
		if err = d.skip(4); err != nil {
			return nil, err
		}
		if op.Name, err = d.cstring(); err != nil {
			return nil, err
		}
		return op, nil

	case OpGetLk, OpSetLk, OpSetLkW:
		var in struct {
			Fh      uint64
			Owner   uint64
			Lk      FileLock
			LkFlags uint32
			_       uint32
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		switch opcode {
		case OpGetLk:
			return &GetLkOp{Fh: in.Fh, Owner: in.Owner, Lock: in.Lk, LkFlags: in.LkFlags}, nil
		case OpSetLk:
			return &SetLkOp{Fh: in.Fh, Owner: in.Owner, Lock: in.Lk, LkFlags: in.LkFlags}, nil
		default:
			return &SetLkWOp{Fh: in.Fh, Owner: in.Owner, Lock: in.Lk, LkFlags: in.LkFlags}, nil
		}

	case OpBMap:
		block, err := d.u64()
		if err != nil {
			return nil, err
		}
		blocksize, err := d.u32()
		if err != nil {
			return nil, err
		}
		return &BMapOp{Block: block, BlockSize: blocksize}, nil

	case OpIoCtl:
		var in struct {
			Fh      uint64
			Flags   uint32
			Cmd     uint32
			Arg     uint64
			InSize  uint32
			OutSize uint32
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		inData, err := d.take(int(in.InSize))
		if err != nil {
			return nil, err
		}
		return &IoCtlOp{
			Fh: in.Fh, Flags: in.Flags, Cmd: in.Cmd, Arg: in.Arg,
			InData: inData, OutSize: in.OutSize,
		}, nil

	case OpPoll:
		var in struct {
			Fh     uint64
			Kh     uint64
			Flags  uint32
			Events uint32
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		return &PollOp{Fh: in.Fh, Kh: in.Kh, Flags: in.Flags, Events: in.Events}, nil

	case OpFAllocate:
		var in struct {
			Fh     uint64
			Offset uint64
			Length uint64
			Mode   uint32
			_      uint32
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		return &FAllocateOp{Fh: in.Fh, Offset: in.Offset, Length: in.Length, Mode: in.Mode}, nil

	case OpLseek:
		var in struct {
			Fh     uint64
			Offset uint64
			Whence uint32
			_      uint32
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		return &LseekOp{Fh: in.Fh, Offset: in.Offset, Whence: in.Whence}, nil

	case OpCopyFileRange:
		var in struct {
			FhIn      uint64
			OffIn     uint64
			NodeIDOut uint64
			FhOut     uint64
			OffOut    uint64
			Len       uint64
			Flags     uint64
		}
		if err := d.strct(&in); err != nil {
			return nil, err
		}
		return &CopyFileRangeOp{
			FhIn: in.FhIn, OffIn: in.OffIn, NodeIDOut: in.NodeIDOut,
			FhOut: in.FhOut, OffOut: in.OffOut, Len: in.Len, Flags: in.Flags,
		}, nil
	}

	return decodePlatform(opcode, d)
}
