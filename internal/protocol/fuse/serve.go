package fuse

import (
	"context"
	"sync"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
	"github.com/driftfs/driftfs/pkg/bufpool"
)

// The read buffer must hold the largest request the kernel may send: a
// WRITE of max_write plus headers. Sized for the default max_write with
// page-alignment slack; the kernel additionally requires MinReadBuffer.
const serveBufferSize = (1 << 20) + 64*1024

// serveBuffers is shared across mounts; the parallel loop cycles through
// one buffer per in-flight request.
var serveBuffers = bufpool.New(serveBufferSize)

// Serve runs the serial request loop: read, decode, dispatch, repeat. One
// request is fully answered before the next is read, which gives natural
// backpressure. It returns when the session is destroyed, the filesystem is
// unmounted, the context is cancelled, or the device fails.
func Serve(ctx context.Context, s *Session, ch *Channel) error {
	buf := serveBuffers.Get()
	defer serveBuffers.Put(buf)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, ok, err := ch.ReadRequest(buf)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("kernel connection closed")
			return nil
		}

		req, err := wire.ParseRequest(buf[:n])
		if err != nil {
			// Undecodable requests are dropped without a reply; the kernel
			// will time the caller out.
			logger.Error("dropping undecodable kernel request", logger.KeyError, err.Error())
			if m := s.recorder(); m != nil {
				m.RecordDecodeError()
			}
			continue
		}

		s.Dispatch(ctx, req)

		if s.Destroyed() {
			return nil
		}
	}
}

// ServeParallel runs the concurrent request loop: every decoded request is
// dispatched on its own goroutine over a SharedSession. There is no
// backpressure and no cancellation of in-flight handlers at this layer; a
// request pipelined behind INIT may race the handshake and be answered EIO,
// which the kernel retries.
func ServeParallel(ctx context.Context, s *SharedSession, ch *Channel) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Each request owns its buffer until its dispatch finishes; decoded
		// operations may alias the raw bytes.
		buf := serveBuffers.Get()
		n, ok, err := ch.ReadRequest(buf)
		if err != nil {
			serveBuffers.Put(buf)
			return err
		}
		if !ok {
			serveBuffers.Put(buf)
			logger.Info("kernel connection closed")
			return nil
		}

		req, err := wire.ParseRequest(buf[:n])
		if err != nil {
			serveBuffers.Put(buf)
			logger.Error("dropping undecodable kernel request", logger.KeyError, err.Error())
			if m := s.recorder(); m != nil {
				m.RecordDecodeError()
			}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer serveBuffers.Put(buf)
			s.Dispatch(ctx, req)
		}()

		if s.Destroyed() {
			return nil
		}
	}
}
