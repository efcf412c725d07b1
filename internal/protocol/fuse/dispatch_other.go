//go:build !darwin

package fuse

import (
	"context"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
	"github.com/driftfs/driftfs/pkg/filesystem"
)

// routePlatform has nothing to serve outside darwin; the decoder never
// produces platform variants here.
func routePlatform(_ context.Context, _ sessionState, _ filesystem.Meta, _ wire.Operation) bool {
	return false
}
