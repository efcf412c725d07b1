package fuse

import (
	"errors"
	"os"
	"syscall"
)

// Channel is the /dev/fuse connection of one mount. Every read yields one
// whole request; every Send must be one write, since the kernel treats each
// write as a complete reply frame.
type Channel struct {
	dev *os.File
}

// NewChannel wraps an already-open kernel device.
func NewChannel(dev *os.File) *Channel {
	return &Channel{dev: dev}
}

// ReadRequest fills buf with the next kernel request. It retries the
// transient errnos the device returns around signals and races with
// interrupted requests, and reports io-style errors otherwise. A false ok
// means the kernel hung up: the filesystem was unmounted.
func (c *Channel) ReadRequest(buf []byte) (n int, ok bool, err error) {
	for {
		n, err = c.dev.Read(buf)
		if err == nil {
			return n, true, nil
		}
		switch {
		case errors.Is(err, syscall.EINTR),
			errors.Is(err, syscall.EAGAIN),
			// ENOENT means the request we were about to read was aborted.
			errors.Is(err, syscall.ENOENT):
			continue
		case errors.Is(err, syscall.ENODEV), errors.Is(err, os.ErrClosed):
			return 0, false, nil
		default:
			return 0, false, err
		}
	}
}

// Send writes one reply frame back to the kernel.
func (c *Channel) Send(buf []byte) error {
	_, err := c.dev.Write(buf)
	return err
}

// Close releases the device. The kernel aborts the mount when the last
// reference drops.
func (c *Channel) Close() error {
	return c.dev.Close()
}
