package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for spans. Keys follow OpenTelemetry semantic conventions
// where one applies; everything else uses the fuse., fs., sync. and hook.
// prefixes.
const (
	// ========================================================================
	// Kernel request attributes
	// ========================================================================
	AttrFUSEOp     = "fuse.op"     // Operation name (LOOKUP, READ, ...)
	AttrFUSEUnique = "fuse.unique" // Kernel request id
	AttrFUSENode   = "fuse.node"   // Target node id
	AttrFUSEErrno  = "fuse.errno"  // Errno replied to the kernel (0 = ok)

	// ========================================================================
	// Caller attributes (from the request header)
	// ========================================================================
	AttrUID = "user.uid"
	AttrGID = "user.gid"
	AttrPID = "user.pid"

	// ========================================================================
	// Filesystem attributes
	// ========================================================================
	AttrPath   = "fs.path"
	AttrName   = "fs.name" // Entry name (basename)
	AttrIno    = "fs.ino"
	AttrOffset = "fs.offset"
	AttrSize   = "fs.size"
	AttrMode   = "fs.mode"

	// ========================================================================
	// Remote sync attributes
	// ========================================================================
	AttrBucket         = "storage.bucket"
	AttrKey            = "storage.key"
	AttrRegion         = "storage.region"
	AttrSyncGeneration = "sync.generation"
	AttrSyncBytes      = "sync.bytes"

	// ========================================================================
	// Hook attributes
	// ========================================================================
	AttrHookName     = "hook.name"
	AttrHookDecision = "hook.decision" // allow, warn, block
)

// Span names for internal operations. Kernel request spans are named
// "fuse.<OP>" and built by StartRequestSpan.
const (
	SpanSyncPush       = "sync.push"
	SpanSyncPull       = "sync.pull"
	SpanSyncCheckpoint = "sync.checkpoint"
	SpanSyncStats      = "sync.stats"

	SpanMetaLookup = "metadata.lookup"
	SpanMetaCreate = "metadata.create"
	SpanMetaUpdate = "metadata.update"
	SpanMetaDelete = "metadata.delete"

	SpanHookRun = "hook.run"
)

// FUSEOp returns an attribute for the operation name
func FUSEOp(name string) attribute.KeyValue {
	return attribute.String(AttrFUSEOp, name)
}

// FUSEUnique returns an attribute for the kernel request id
func FUSEUnique(unique uint64) attribute.KeyValue {
	return attribute.Int64(AttrFUSEUnique, int64(unique))
}

// FUSENode returns an attribute for the target node id
func FUSENode(node uint64) attribute.KeyValue {
	return attribute.Int64(AttrFUSENode, int64(node))
}

// FUSEErrno returns an attribute for the replied errno
func FUSEErrno(errno int) attribute.KeyValue {
	return attribute.Int(AttrFUSEErrno, errno)
}

// UID returns an attribute for the caller uid
func UID(uid uint32) attribute.KeyValue {
	return attribute.Int64(AttrUID, int64(uid))
}

// GID returns an attribute for the caller gid
func GID(gid uint32) attribute.KeyValue {
	return attribute.Int64(AttrGID, int64(gid))
}

// PID returns an attribute for the caller pid
func PID(pid uint32) attribute.KeyValue {
	return attribute.Int64(AttrPID, int64(pid))
}

// Path returns an attribute for a file path
func Path(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

// Name returns an attribute for an entry name
func Name(name string) attribute.KeyValue {
	return attribute.String(AttrName, name)
}

// Ino returns an attribute for an inode number
func Ino(ino uint64) attribute.KeyValue {
	return attribute.Int64(AttrIno, int64(ino))
}

// Offset returns an attribute for an I/O offset
func Offset(offset uint64) attribute.KeyValue {
	return attribute.Int64(AttrOffset, int64(offset))
}

// Size returns an attribute for a byte count
func Size(size uint64) attribute.KeyValue {
	return attribute.Int64(AttrSize, int64(size))
}

// Mode returns an attribute for a file mode
func Mode(mode uint32) attribute.KeyValue {
	return attribute.Int64(AttrMode, int64(mode))
}

// Bucket returns an attribute for the S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for the S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for the bucket region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// SyncGeneration returns an attribute for the artifact generation id
func SyncGeneration(gen string) attribute.KeyValue {
	return attribute.String(AttrSyncGeneration, gen)
}

// SyncBytes returns an attribute for the transferred byte count
func SyncBytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSyncBytes, n)
}

// HookName returns an attribute for the hook name
func HookName(name string) attribute.KeyValue {
	return attribute.String(AttrHookName, name)
}

// HookDecision returns an attribute for the hook outcome
func HookDecision(decision string) attribute.KeyValue {
	return attribute.String(AttrHookDecision, decision)
}

// StartRequestSpan starts a span for one kernel request. The span is named
// "fuse.<op>" and carries the request id and target node.
func StartRequestSpan(ctx context.Context, op string, unique, node uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		FUSEOp(op),
		FUSEUnique(unique),
		FUSENode(node),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "fuse."+op, trace.WithAttributes(allAttrs...))
}

// StartSyncSpan starts a span for a remote sync operation against the bucket.
func StartSyncSpan(ctx context.Context, name, bucket string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Bucket(bucket),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartMetadataSpan starts a span for a metadata store operation.
func StartMetadataSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(attrs...))
}

// StartHookSpan starts a span for one hook invocation.
func StartHookSpan(ctx context.Context, hook string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		HookName(hook),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanHookRun, trace.WithAttributes(allAttrs...))
}
