//go:build darwin

package fuse

import (
	"context"
	"syscall"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
	"github.com/driftfs/driftfs/pkg/filesystem"
)

// routePlatform serves the macOS-only opcodes. Backends opt in via the
// DarwinFilesystem interface; everything else answers ENOSYS.
func routePlatform(ctx context.Context, s sessionState, meta filesystem.Meta, op wire.Operation) bool {
	dfs, ok := s.backend().(filesystem.DarwinFilesystem)
	sender := s.channel()
	unique := meta.Unique

	switch op := op.(type) {
	case *wire.SetVolNameOp:
		if !ok {
			sendError(s, "SETVOLNAME", unique, syscall.ENOSYS)
			return true
		}
		dfs.SetVolName(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))
		return true
	case *wire.GetXTimesOp:
		if !ok {
			sendError(s, "GETXTIMES", unique, syscall.ENOSYS)
			return true
		}
		dfs.GetXTimes(ctx, meta, op, filesystem.NewXTimesReply(unique, sender))
		return true
	case *wire.ExchangeOp:
		if !ok {
			sendError(s, "EXCHANGE", unique, syscall.ENOSYS)
			return true
		}
		dfs.Exchange(ctx, meta, op, filesystem.NewEmptyReply(unique, sender))
		return true
	}
	return false
}
