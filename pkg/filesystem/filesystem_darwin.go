//go:build darwin

package filesystem

import (
	"context"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
)

// DarwinFilesystem is the optional macOS extension surface. Backends that
// do not implement it get ENOSYS for these operations.
type DarwinFilesystem interface {
	SetVolName(ctx context.Context, meta Meta, op *wire.SetVolNameOp, reply *EmptyReply)
	GetXTimes(ctx context.Context, meta Meta, op *wire.GetXTimesOp, reply *XTimesReply)
	Exchange(ctx context.Context, meta Meta, op *wire.ExchangeOp, reply *EmptyReply)
}

// XTimesReply answers GETXTIMES with backup and creation times.
type XTimesReply struct{ reply }

func NewXTimesReply(unique uint64, sender ReplySender) *XTimesReply {
	return &XTimesReply{newReply(unique, sender)}
}

func (r *XTimesReply) XTimes(out *wire.XTimesOut) { r.payload(out, nil) }
