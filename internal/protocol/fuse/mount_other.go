//go:build !linux

package fuse

import "fmt"

// MountOptions configures how the filesystem appears to the kernel.
type MountOptions struct {
	FSName             string
	Subtype            string
	AllowOther         bool
	DefaultPermissions bool
	ReadOnly           bool
	DirectMount        bool
}

// Mount is only implemented on Linux.
func Mount(target string, opts MountOptions) (*Channel, error) {
	return nil, fmt.Errorf("mounting is not supported on this platform")
}

// Unmount is only implemented on Linux.
func Unmount(target string) error {
	return fmt.Errorf("unmounting is not supported on this platform")
}
