// Package bufpool recycles the kernel read buffers of the serve loops.
// Every request read from /dev/fuse needs a buffer large enough for a
// full-size WRITE plus headers, which is too big to allocate per request
// when serving goroutine-per-request.
package bufpool

import "sync"

// Pool hands out fixed-size byte slices. A decoded request may alias its
// read buffer, so a buffer goes back only after its dispatch completes.
type Pool struct {
	size int
	pool sync.Pool
}

// New builds a pool of size-byte buffers.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Get returns a buffer of the pool's size.
func (p *Pool) Get() []byte {
	return *p.pool.Get().(*[]byte)
}

// Put returns a buffer for reuse. Buffers of the wrong capacity are
// dropped; they came from somewhere else.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}

// Size returns the buffer size the pool serves.
func (p *Pool) Size() int {
	return p.size
}
