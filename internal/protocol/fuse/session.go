// Package fuse implements the DriftFS session engine: it owns the protocol
// lifecycle of one mounted filesystem and routes decoded kernel requests to
// a backend.
//
// A session moves through three states. It starts uninitialized, becomes
// initialized after a successful INIT handshake, and is destroyed when the
// kernel sends DESTROY. Requests outside the live window are answered EIO;
// the protocol version is fixed exactly once, during INIT.
package fuse

import (
	"context"
	"sync/atomic"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
	"github.com/driftfs/driftfs/pkg/filesystem"
	"github.com/driftfs/driftfs/pkg/metrics"
)

// ACL selects which callers a session answers.
type ACL int

const (
	// ACLUnrestricted answers every caller.
	ACLUnrestricted ACL = iota
	// ACLOwnerOnly answers only the session owner.
	ACLOwnerOnly
	// ACLRootAndOwner answers root and the session owner.
	ACLRootAndOwner
)

func (a ACL) String() string {
	switch a {
	case ACLUnrestricted:
		return "unrestricted"
	case ACLOwnerOnly:
		return "owner-only"
	case ACLRootAndOwner:
		return "root-and-owner"
	default:
		return "unknown"
	}
}

// sessionState is what the routing routine needs from a session. Session
// backs it with plain fields for the serial serve loop; SharedSession backs
// it with atomics so concurrent dispatches see a consistent lifecycle.
type sessionState interface {
	backend() filesystem.Filesystem
	channel() filesystem.ReplySender
	aclMode() ACL
	ownerUID() uint32
	recorder() metrics.FUSEMetrics

	protoMinor() uint32
	setProto(major, minor uint32)
	isInitialized() bool
	markInitialized()
	isDestroyed() bool
	markDestroyed()
}

// Session serves one mounted filesystem from a single goroutine.
type Session struct {
	fs      filesystem.Filesystem
	sender  filesystem.ReplySender
	acl     ACL
	owner   uint32
	metrics metrics.FUSEMetrics

	major       uint32
	minor       uint32
	initialized bool
	destroyed   bool
}

// NewSession builds an exclusive session. owner is the uid the ACL treats
// as the session owner, normally the mounting user. m may be nil.
func NewSession(fs filesystem.Filesystem, sender filesystem.ReplySender, acl ACL, owner uint32, m metrics.FUSEMetrics) *Session {
	return &Session{fs: fs, sender: sender, acl: acl, owner: owner, metrics: m}
}

// Dispatch routes one decoded request.
func (s *Session) Dispatch(ctx context.Context, req *wire.Request) {
	dispatch(ctx, s, req)
}

// ProtoVersion returns the version negotiated at INIT, zero before it.
func (s *Session) ProtoVersion() (major, minor uint32) { return s.major, s.minor }

// Initialized reports whether INIT has completed.
func (s *Session) Initialized() bool { return s.initialized }

// Destroyed reports whether DESTROY has been handled.
func (s *Session) Destroyed() bool { return s.destroyed }

func (s *Session) backend() filesystem.Filesystem { return s.fs }
func (s *Session) channel() filesystem.ReplySender { return s.sender }
func (s *Session) aclMode() ACL { return s.acl }
func (s *Session) ownerUID() uint32 { return s.owner }
func (s *Session) recorder() metrics.FUSEMetrics { return s.metrics }
func (s *Session) protoMinor() uint32 { return s.minor }
func (s *Session) setProto(major, minor uint32) { s.major, s.minor = major, minor }
func (s *Session) isInitialized() bool { return s.initialized }
func (s *Session) markInitialized() { s.initialized = true }
func (s *Session) isDestroyed() bool { return s.destroyed }
func (s *Session) markDestroyed() { s.destroyed = true }

// SharedSession serves one mounted filesystem from many goroutines. The
// lifecycle fields are atomics: markInitialized publishes the protocol
// version written just before it, so a dispatch that observes the
// initialized flag also observes the version.
type SharedSession struct {
	fs      filesystem.Filesystem
	sender  filesystem.ReplySender
	acl     ACL
	owner   uint32
	metrics metrics.FUSEMetrics

	major       atomic.Uint32
	minor       atomic.Uint32
	initialized atomic.Bool
	destroyed   atomic.Bool
}

// NewSharedSession builds a session safe for goroutine-per-request serving.
func NewSharedSession(fs filesystem.Filesystem, sender filesystem.ReplySender, acl ACL, owner uint32, m metrics.FUSEMetrics) *SharedSession {
	return &SharedSession{fs: fs, sender: sender, acl: acl, owner: owner, metrics: m}
}

// Dispatch routes one decoded request. Safe to call concurrently.
func (s *SharedSession) Dispatch(ctx context.Context, req *wire.Request) {
	dispatch(ctx, s, req)
}

// ProtoVersion returns the version negotiated at INIT, zero before it.
func (s *SharedSession) ProtoVersion() (major, minor uint32) {
	return s.major.Load(), s.minor.Load()
}

// Initialized reports whether INIT has completed.
func (s *SharedSession) Initialized() bool { return s.initialized.Load() }

// Destroyed reports whether DESTROY has been handled.
func (s *SharedSession) Destroyed() bool { return s.destroyed.Load() }

func (s *SharedSession) backend() filesystem.Filesystem { return s.fs }
func (s *SharedSession) channel() filesystem.ReplySender { return s.sender }
func (s *SharedSession) aclMode() ACL { return s.acl }
func (s *SharedSession) ownerUID() uint32 { return s.owner }
func (s *SharedSession) recorder() metrics.FUSEMetrics { return s.metrics }
func (s *SharedSession) protoMinor() uint32 { return s.minor.Load() }
func (s *SharedSession) setProto(major, minor uint32) {
	s.major.Store(major)
	s.minor.Store(minor)
}
func (s *SharedSession) isInitialized() bool { return s.initialized.Load() }
func (s *SharedSession) markInitialized() { s.initialized.Store(true) }
func (s *SharedSession) isDestroyed() bool { return s.destroyed.Load() }
func (s *SharedSession) markDestroyed() { s.destroyed.Store(true) }

// bypassesACL lists the operations the kernel issues for its own bookkeeping
// regardless of which user triggered them. These always pass access control;
// READDIRPLUS joined the set in protocol 7.21.
func bypassesACL(op wire.Opcode, protoMinor uint32) bool {
	switch op {
	case wire.OpInit, wire.OpDestroy,
		wire.OpForget, wire.OpBatchForget,
		wire.OpRead, wire.OpReadDir,
		wire.OpWrite, wire.OpFSync, wire.OpFSyncDir,
		wire.OpRelease, wire.OpReleaseDir:
		return true
	case wire.OpReadDirPlus:
		return protoMinor >= 21
	}
	return false
}

// aclAllows applies the session ACL to one request. The allowlist is only
// consulted when the caller identity fails the policy.
func aclAllows(s sessionState, uid uint32, op wire.Opcode) bool {
	switch s.aclMode() {
	case ACLUnrestricted:
		return true
	case ACLRootAndOwner:
		if uid == 0 || uid == s.ownerUID() {
			return true
		}
	case ACLOwnerOnly:
		if uid == s.ownerUID() {
			return true
		}
	}
	return bypassesACL(op, s.protoMinor())
}
