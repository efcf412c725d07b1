package filesystem

import (
	"fmt"
	"time"

	"github.com/driftfs/driftfs/internal/protocol/fuse/wire"
)

// Negotiation defaults sent back to the kernel unless the backend overrides
// them during Init.
const (
	defaultMaxWrite            = 1 << 20 // 1 MiB
	defaultMaxBackground       = 16
	defaultCongestionThreshold = 12
	defaultTimeGranNsec        = 1 // nanosecond timestamps
)

// KernelConfig is the negotiation surface handed to a backend's Init. The
// kernel offers a capability set and a readahead ceiling; the backend may
// claim capabilities out of that offer and tighten or relax the transfer
// limits. Whatever stands when Init returns is what the kernel is told.
type KernelConfig struct {
	offered             uint32 // capability flags the kernel offered
	claimed             uint32 // subset the backend claimed
	maxReadahead        uint32 // ceiling set by the kernel offer
	maxWrite            uint32
	maxBackground       uint16
	congestionThreshold uint16
	timeGranNsec        uint32
}

// NewKernelConfig builds the negotiation state from the kernel's INIT offer.
func NewKernelConfig(offeredFlags, maxReadahead uint32) *KernelConfig {
	return &KernelConfig{
		offered:             offeredFlags,
		maxReadahead:        maxReadahead,
		maxWrite:            defaultMaxWrite,
		maxBackground:       defaultMaxBackground,
		congestionThreshold: defaultCongestionThreshold,
		timeGranNsec:        defaultTimeGranNsec,
	}
}

// AddCapabilities claims capability flags. All requested flags must be part
// of the kernel's offer.
func (c *KernelConfig) AddCapabilities(flags uint32) error {
	if flags&^c.offered != 0 {
		return fmt.Errorf("capabilities %#x not offered by the kernel (offer %#x)",
			flags&^c.offered, c.offered)
	}
	c.claimed |= flags
	return nil
}

// Offered reports whether the kernel offered all of the given flags.
func (c *KernelConfig) Offered(flags uint32) bool {
	return c.offered&flags == flags
}

// SetMaxWrite bounds the largest WRITE payload the kernel may send. The
// kernel requires at least MinReadBuffer minus the header overhead.
func (c *KernelConfig) SetMaxWrite(n uint32) error {
	if n < wire.MinReadBuffer-4096 {
		return fmt.Errorf("max write %d below the kernel minimum %d", n, wire.MinReadBuffer-4096)
	}
	c.maxWrite = n
	return nil
}

// SetMaxReadahead lowers the readahead window. It cannot exceed the
// kernel's offer.
func (c *KernelConfig) SetMaxReadahead(n uint32) error {
	if n > c.maxReadahead {
		return fmt.Errorf("max readahead %d exceeds the kernel offer %d", n, c.maxReadahead)
	}
	c.maxReadahead = n
	return nil
}

// SetTimeGranularity declares the timestamp resolution the backend stores.
// Must be a power of ten between 1ns and 1s.
func (c *KernelConfig) SetTimeGranularity(d time.Duration) error {
	ns := d.Nanoseconds()
	if ns < 1 || ns > int64(time.Second) {
		return fmt.Errorf("time granularity %v out of range", d)
	}
	for g := int64(1); g <= int64(time.Second); g *= 10 {
		if ns == g {
			c.timeGranNsec = uint32(ns)
			return nil
		}
	}
	return fmt.Errorf("time granularity %v is not a power of ten", d)
}

// SetBackgroundLimits tunes the kernel's async request queue.
func (c *KernelConfig) SetBackgroundLimits(max, congestion uint16) {
	c.maxBackground = max
	c.congestionThreshold = congestion
}

// Capabilities returns the claimed flag set sent back to the kernel.
func (c *KernelConfig) Capabilities() uint32 { return c.claimed }

// MaxReadahead returns the negotiated readahead window.
func (c *KernelConfig) MaxReadahead() uint32 { return c.maxReadahead }

// MaxWrite returns the negotiated write ceiling.
func (c *KernelConfig) MaxWrite() uint32 { return c.maxWrite }

// BackgroundLimits returns the async queue tuning.
func (c *KernelConfig) BackgroundLimits() (max, congestion uint16) {
	return c.maxBackground, c.congestionThreshold
}

// TimeGranularity returns the timestamp resolution in nanoseconds.
func (c *KernelConfig) TimeGranularity() uint32 { return c.timeGranNsec }
