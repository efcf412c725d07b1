package fuse

import (
	"context"
	"strconv"
	"syscall"
	"time"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
	"github.com/driftfs/driftfs/internal/telemetry"
	"github.com/driftfs/driftfs/pkg/filesystem"
)

// dispatch is the single routing routine shared by Session and
// SharedSession. Per request the order is fixed: access control first, then
// the lifecycle guards, then exactly one backend call. Forget and
// BatchForget never build a replier because the kernel expects no answer.
func dispatch(ctx context.Context, s sessionState, req *wire.Request) {
	opcode := wire.Opcode(req.Header.Opcode)
	name := opcode.String()
	start := time.Now()

	ctx, span := telemetry.StartRequestSpan(ctx, name, req.Header.Unique, req.Header.NodeID,
		telemetry.UID(req.Header.UID), telemetry.PID(req.Header.PID))
	defer span.End()

	lc := logger.NewLogContext(name, req.Header.Unique).
		WithCaller(req.Header.UID, req.Header.GID, req.Header.PID)
	if telemetry.IsEnabled() {
		lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	}
	ctx = logger.WithContext(ctx, lc)

	if m := s.recorder(); m != nil {
		m.RecordRequestStart(name)
		defer func() {
			m.RecordRequestEnd(name)
			m.RecordRequest(name, time.Since(start), "")
		}()
	}

	meta := filesystem.Meta{
		Unique: req.Header.Unique,
		Node:   req.Header.NodeID,
		UID:    req.Header.UID,
		GID:    req.Header.GID,
		PID:    req.Header.PID,
	}

	if !aclAllows(s, meta.UID, opcode) {
		logger.DebugCtx(ctx, "request denied by session acl",
			"acl", s.aclMode().String())
		sendError(s, name, meta.Unique, syscall.EACCES)
		return
	}

	// INIT is the only request served before the session is live.
	if op, ok := req.Op.(*wire.InitOp); ok {
		handleInit(ctx, s, meta, op)
		return
	}

	if !s.isInitialized() {
		logger.WarnCtx(ctx, "ignoring kernel request before session init")
		sendError(s, name, meta.Unique, syscall.EIO)
		return
	}

	if op, ok := req.Op.(*wire.DestroyOp); ok {
		handleDestroy(ctx, s, meta, op, name)
		return
	}

	if s.isDestroyed() {
		logger.WarnCtx(ctx, "ignoring kernel request after session destroy")
		sendError(s, name, meta.Unique, syscall.EIO)
		return
	}

	route(ctx, s, meta, req, name)
}

// handleInit runs the version handshake and the backend's capability
// negotiation. On success the protocol version is written before the
// initialized flag so concurrent dispatches never see one without the other.
func handleInit(ctx context.Context, s sessionState, meta filesystem.Meta, op *wire.InitOp) {
	if s.isInitialized() {
		logger.Warn("duplicate init request", logger.KeyRequestID, meta.Unique)
		sendError(s, "INIT", meta.Unique, syscall.EIO)
		return
	}

	logger.Debug("kernel init",
		"kernel_proto", versionString(op.Major, op.Minor),
		"max_readahead", op.MaxReadahead)

	if op.Major < wire.MinKernelVersion ||
		(op.Major == wire.MinKernelVersion && op.Minor < wire.MinKernelMinorVersion) {
		logger.Error("unsupported kernel protocol version",
			"kernel_proto", versionString(op.Major, op.Minor),
			"min_proto", versionString(wire.MinKernelVersion, wire.MinKernelMinorVersion))
		sendError(s, "INIT", meta.Unique, syscall.EPROTO)
		return
	}

	if op.Major > wire.KernelVersion {
		// The kernel speaks a newer major. Answer with ours only; it will
		// downgrade and send a second INIT.
		sendReply(s, "INIT", meta.Unique,
			&wire.InitOut{Major: wire.KernelVersion, Minor: wire.KernelMinorVersion}, nil)
		return
	}

	config := filesystem.NewKernelConfig(op.Flags, op.MaxReadahead)
	if errno := s.backend().Init(ctx, meta, config); errno != 0 {
		logger.Error("backend rejected session init", logger.KeyErrorCode, int(errno))
		sendError(s, "INIT", meta.Unique, errno)
		return
	}

	minor := op.Minor
	if minor > wire.KernelMinorVersion {
		minor = wire.KernelMinorVersion
	}
	s.setProto(op.Major, minor)
	s.markInitialized()

	maxBackground, congestion := config.BackgroundLimits()
	maxWrite := config.MaxWrite()
	out := &wire.InitOut{
		Major:               wire.KernelVersion,
		Minor:               minor,
		MaxReadahead:        config.MaxReadahead(),
		Flags:               config.Capabilities(),
		MaxBackground:       maxBackground,
		CongestionThreshold: congestion,
		MaxWrite:            maxWrite,
		TimeGran:            config.TimeGranularity(),
		MaxPages:            uint16((maxWrite + 4095) / 4096),
	}
	sendReply(s, "INIT", meta.Unique, out, nil)

	logger.Info("session initialized",
		"proto", versionString(op.Major, minor),
		"max_write", maxWrite,
		"capabilities", strconv.FormatUint(uint64(out.Flags), 16))
}

// handleDestroy tears the session down exactly once; a repeated DESTROY is
// an ordering violation like any other post-destroy request.
func handleDestroy(ctx context.Context, s sessionState, meta filesystem.Meta, _ *wire.DestroyOp, name string) {
	if s.isDestroyed() {
		logger.Warn("duplicate destroy request", logger.KeyRequestID, meta.Unique)
		sendError(s, name, meta.Unique, syscall.EIO)
		return
	}
	s.backend().Destroy(ctx)
	s.markDestroyed()
	filesystem.NewEmptyReply(meta.Unique, s.channel()).Ok()
	logger.Info("session destroyed")
}

// route hands a live-session request to exactly one backend method.
func route(ctx context.Context, s sessionState, meta filesystem.Meta, req *wire.Request, name string) {
	fs := s.backend()
	sender := s.channel()
	unique := meta.Unique

	switch op := req.Op.(type) {
	// Kernel-side features this daemon does not implement.
	case *wire.InterruptOp, *wire.NotifyReplyOp, *wire.CuseInitOp:
		sendError(s, name, unique, syscall.ENOSYS)

	// Reply-less bookkeeping.
	case *wire.ForgetOp:
		fs.Forget(ctx, meta, op)
	case *wire.BatchForgetOp:
		fs.BatchForget(ctx, meta, op)

	case *wire.LookupOp:
		fs.Lookup(ctx, meta, op, filesystem.NewEntryReply(unique, sender))
	case *wire.GetAttrOp:
		fs.GetAttr(ctx, meta, op, filesystem.NewAttrReply(unique, sender))
	case *wire.SetAttrOp:
		fs.SetAttr(ctx, meta, op, filesystem.NewAttrReply(unique, sender))
	case *wire.ReadLinkOp:
		fs.ReadLink(ctx, meta, op, filesystem.NewDataReply(unique, sender))

	case *wire.MkNodOp:
		fs.MkNod(ctx, meta, op, filesystem.NewEntryReply(unique, sender))
	case *wire.MkDirOp:
		fs.MkDir(ctx, meta, op, filesystem.NewEntryReply(unique, sender))
	case *wire.UnlinkOp:
		fs.Unlink(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))
	case *wire.RmDirOp:
		fs.RmDir(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))
	case *wire.SymLinkOp:
		fs.SymLink(ctx, meta, op, filesystem.NewEntryReply(unique, sender))
	case *wire.RenameOp:
		fs.Rename(ctx, meta, op, 0, filesystem.NewEmptyReply(unique, sender))
	case *wire.Rename2Op:
		plain := &wire.RenameOp{NewDir: op.NewDir, OldName: op.OldName, NewName: op.NewName}
		fs.Rename(ctx, meta, plain, op.Flags, filesystem.NewEmptyReply(unique, sender))
	case *wire.LinkOp:
		fs.Link(ctx, meta, op, filesystem.NewEntryReply(unique, sender))
	case *wire.CreateOp:
		fs.Create(ctx, meta, op, filesystem.NewCreateReply(unique, sender))

	case *wire.OpenOp:
		fs.Open(ctx, meta, op, filesystem.NewOpenReply(unique, sender))
	case *wire.ReadOp:
		if m := s.recorder(); m != nil {
			m.RecordBytesTransferred("read", uint64(op.Size))
		}
		fs.Read(ctx, meta, op, filesystem.NewDataReply(unique, sender))
	case *wire.WriteOp:
		if m := s.recorder(); m != nil {
			m.RecordBytesTransferred("write", uint64(len(op.Data)))
		}
		fs.Write(ctx, meta, op, filesystem.NewWriteReply(unique, sender))
	case *wire.FlushOp:
		fs.Flush(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))
	case *wire.ReleaseOp:
		fs.Release(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))
	case *wire.FSyncOp:
		fs.FSync(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))

	case *wire.OpenDirOp:
		fs.OpenDir(ctx, meta, op, filesystem.NewOpenReply(unique, sender))
	case *wire.ReadDirOp:
		fs.ReadDir(ctx, meta, op, filesystem.NewDirectoryReply(unique, sender, op.Size))
	case *wire.ReadDirPlusOp:
		fs.ReadDirPlus(ctx, meta, op, filesystem.NewDirectoryPlusReply(unique, sender, op.Size))
	case *wire.ReleaseDirOp:
		fs.ReleaseDir(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))
	case *wire.FSyncDirOp:
		fs.FSyncDir(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))

	case *wire.StatFsOp:
		fs.StatFs(ctx, meta, op, filesystem.NewStatfsReply(unique, sender))
	case *wire.AccessOp:
		fs.Access(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))

	case *wire.SetXAttrOp:
		fs.SetXAttr(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))
	case *wire.GetXAttrOp:
		fs.GetXAttr(ctx, meta, op, filesystem.NewXattrReply(unique, sender))
	case *wire.ListXAttrOp:
		fs.ListXAttr(ctx, meta, op, filesystem.NewXattrReply(unique, sender))
	case *wire.RemoveXAttrOp:
		fs.RemoveXAttr(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))

	case *wire.GetLkOp:
		fs.GetLk(ctx, meta, op, filesystem.NewLockReply(unique, sender))
	case *wire.SetLkOp:
		fs.SetLk(ctx, meta, op, false, filesystem.NewEmptyReply(unique, sender))
	case *wire.SetLkWOp:
		plain := &wire.SetLkOp{Fh: op.Fh, Owner: op.Owner, Lock: op.Lock, LkFlags: op.LkFlags}
		fs.SetLk(ctx, meta, plain, true, filesystem.NewEmptyReply(unique, sender))

	case *wire.BMapOp:
		fs.BMap(ctx, meta, op, filesystem.NewBmapReply(unique, sender))
	case *wire.IoCtlOp:
		if op.Unrestricted() {
			// Unrestricted ioctls require the retry protocol, which this
			// daemon does not speak.
			sendError(s, name, unique, syscall.ENOSYS)
			return
		}
		fs.IoCtl(ctx, meta, op, filesystem.NewIoctlReply(unique, sender))
	case *wire.PollOp:
		handle := filesystem.NewPollHandle(op.Kh, sender)
		fs.Poll(ctx, meta, op, handle, filesystem.NewPollReply(unique, sender))
	case *wire.FAllocateOp:
		fs.FAllocate(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))
	case *wire.LseekOp:
		fs.Lseek(ctx, meta, op, filesystem.NewLseekReply(unique, sender))
	case *wire.CopyFileRangeOp:
		fs.CopyFileRange(ctx, meta, op, filesystem.NewWriteReply(unique, sender))

	default:
		if routePlatform(ctx, s, meta, req.Op) {
			return
		}
		logger.Error("no handler for operation", logger.KeyOpcode, name)
		sendError(s, name, unique, syscall.ENOSYS)
	}
}

// sendError answers a request with a bare errno, outside any replier.
func sendError(s sessionState, name string, unique uint64, errno syscall.Errno) {
	if err := s.channel().Send(wire.EncodeError(unique, int32(errno))); err != nil {
		logger.Error("failed to send error reply to kernel",
			logger.KeyOpcode, name,
			logger.KeyRequestID, unique,
			logger.KeyError, err.Error())
		if m := s.recorder(); m != nil {
			m.RecordReplyFailure(name)
		}
	}
	if m := s.recorder(); m != nil {
		m.RecordRequest(name, 0, errnoName(errno))
	}
}

func sendReply(s sessionState, name string, unique uint64, payload any, data []byte) {
	buf, err := wire.EncodeReply(unique, payload, data)
	if err != nil {
		logger.Error("failed to encode reply", logger.KeyOpcode, name, logger.KeyError, err.Error())
		return
	}
	if err := s.channel().Send(buf); err != nil {
		logger.Error("failed to send reply to kernel",
			logger.KeyOpcode, name,
			logger.KeyRequestID, unique,
			logger.KeyError, err.Error())
		if m := s.recorder(); m != nil {
			m.RecordReplyFailure(name)
		}
	}
}

func errnoName(e syscall.Errno) string {
	switch e {
	case syscall.EPERM:
		return "EPERM"
	case syscall.ENOENT:
		return "ENOENT"
	case syscall.EIO:
		return "EIO"
	case syscall.EACCES:
		return "EACCES"
	case syscall.ENOSYS:
		return "ENOSYS"
	case syscall.EPROTO:
		return "EPROTO"
	default:
		return "E" + strconv.Itoa(int(e))
	}
}

func versionString(major, minor uint32) string {
	return strconv.FormatUint(uint64(major), 10) + "." + strconv.FormatUint(uint64(minor), 10)
}
