package logger

// Field keys shared across the codebase so log lines stay queryable. Use
// these instead of ad-hoc strings when logging the same concept.
const (
	// Tracing correlation
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Kernel request
	KeyOpcode    = "opcode"     // FUSE operation name: LOOKUP, READ, ...
	KeyRequestID = "request_id" // kernel unique id correlating request and reply
	KeyMount     = "mount"      // mountpoint path

	// Caller identity from the request header
	KeyUID = "uid"
	KeyGID = "gid"
	KeyPID = "pid"

	// Filesystem objects
	KeyPath    = "path"
	KeyInodeID = "inode_id"
	KeySize    = "size"

	// Errors
	KeyError     = "error"
	KeyErrorCode = "error_code" // numeric errno

	// Stores and remote sync
	KeyMetadataStore = "metadata_store"
	KeyBucket        = "bucket"
	KeyGeneration    = "generation"
)
