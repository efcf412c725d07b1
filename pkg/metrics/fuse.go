package metrics

import "time"

// FUSEMetrics provides observability for the kernel request dispatch path.
//
// Implementations collect per-operation counts, latencies and failure
// classes. The interface is optional: pass nil to disable collection with
// zero overhead.
type FUSEMetrics interface {
	// RecordRequest records a completed kernel request.
	//
	// Parameters:
	//   - opcode: operation name (e.g. "LOOKUP", "READ", "WRITE")
	//   - duration: time from decode to reply
	//   - errno: symbolic errno when the request failed ("EIO", "EACCES",
	//     ...), empty on success
	RecordRequest(opcode string, duration time.Duration, errno string)

	// RecordRequestStart increments the in-flight gauge for an opcode.
	RecordRequestStart(opcode string)

	// RecordRequestEnd decrements the in-flight gauge for an opcode.
	RecordRequestEnd(opcode string)

	// RecordDecodeError counts a kernel buffer that failed decoding and was
	// dropped without a reply.
	RecordDecodeError()

	// RecordReplyFailure counts a reply that could not be written back to
	// the kernel device.
	RecordReplyFailure(opcode string)

	// RecordBytesTransferred records READ/WRITE payload sizes.
	//
	// Parameters:
	//   - direction: "read" or "write"
	RecordBytesTransferred(direction string, bytes uint64)
}
