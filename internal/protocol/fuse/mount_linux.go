//go:build linux

package fuse

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// MountOptions configures how the filesystem appears to the kernel.
type MountOptions struct {
	// FSName is shown as the source in /proc/mounts.
	FSName string

	// Subtype names the filesystem type (fuse.<subtype>).
	Subtype string

	// AllowOther lets users other than the mounter access the mount. With
	// fusermount this requires user_allow_other in /etc/fuse.conf. Leave it
	// off when the session ACL is owner-only; the kernel would otherwise
	// admit requests the session immediately denies.
	AllowOther bool

	// DefaultPermissions delegates permission checks to the kernel.
	DefaultPermissions bool

	// ReadOnly mounts the filesystem read-only.
	ReadOnly bool

	// DirectMount calls mount(2) instead of the fusermount helper.
	// Requires CAP_SYS_ADMIN.
	DirectMount bool
}

// Mount attaches the filesystem at target and returns the kernel channel.
// Without DirectMount it delegates to fusermount so unprivileged users can
// mount; with it, mount(2) is called directly.
func Mount(target string, opts MountOptions) (*Channel, error) {
	fi, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("mount point: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("mount point %s is not a directory", target)
	}

	if opts.DirectMount {
		return mountDirect(target, opts)
	}
	return mountFusermount(target, opts)
}

func mountDirect(target string, opts MountOptions) (*Channel, error) {
	dev, err := os.OpenFile("/dev/fuse", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/fuse: %w", err)
	}

	data := fmt.Sprintf("fd=%d,rootmode=%o,user_id=%d,group_id=%d",
		dev.Fd(), syscall.S_IFDIR|0o755, os.Getuid(), os.Getgid())
	if opts.AllowOther {
		data += ",allow_other"
	}
	if opts.DefaultPermissions {
		data += ",default_permissions"
	}

	flags := uintptr(unix.MS_NOSUID | unix.MS_NODEV)
	if opts.ReadOnly {
		flags |= unix.MS_RDONLY
	}

	fstype := "fuse"
	if opts.Subtype != "" {
		fstype += "." + opts.Subtype
	}
	source := opts.FSName
	if source == "" {
		source = fstype
	}

	if err := unix.Mount(source, target, fstype, flags, data); err != nil {
		dev.Close()
		return nil, fmt.Errorf("mount %s: %w", target, err)
	}
	return NewChannel(dev), nil
}

func mountFusermount(target string, opts MountOptions) (*Channel, error) {
	// fusermount hands the device fd back over a unix socket pair.
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair: %w", err)
	}
	local := os.NewFile(uintptr(fds[1]), "fusermount-recv")
	remote := os.NewFile(uintptr(fds[0]), "fusermount-send")
	defer local.Close()
	defer remote.Close()

	data := "rw"
	if opts.ReadOnly {
		data = "ro"
	}
	if opts.AllowOther {
		data += ",allow_other"
	}
	if opts.DefaultPermissions {
		data += ",default_permissions"
	}
	if opts.FSName != "" {
		data += ",fsname=" + opts.FSName
	}
	if opts.Subtype != "" {
		data += ",subtype=" + opts.Subtype
	}

	cmd := exec.Command(fusermountBinary(), "-o", data, "--", target)
	cmd.Env = append(os.Environ(), "_FUSE_COMMFD=3")
	cmd.ExtraFiles = []*os.File{remote}
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("fusermount: %w: %s", err, out)
	}

	dev, err := receiveDeviceFd(local)
	if err != nil {
		return nil, err
	}
	return NewChannel(dev), nil
}

// receiveDeviceFd reads the /dev/fuse fd fusermount sends via SCM_RIGHTS.
func receiveDeviceFd(sock *os.File) (*os.File, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := unix.Recvmsg(int(sock.Fd()), buf, oob, 0)
	if err != nil {
		return nil, fmt.Errorf("recvmsg from fusermount: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("fusermount sent no device fd")
	}

	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, fmt.Errorf("parse fusermount control message: %w", err)
	}
	for _, msg := range msgs {
		rights, err := unix.ParseUnixRights(&msg)
		if err != nil || len(rights) == 0 {
			continue
		}
		unix.CloseOnExec(rights[0])
		return os.NewFile(uintptr(rights[0]), "/dev/fuse"), nil
	}
	return nil, fmt.Errorf("fusermount control message carried no fd")
}

// Unmount detaches the filesystem at target, falling back to fusermount for
// unprivileged mounts.
func Unmount(target string) error {
	if err := unix.Unmount(target, unix.MNT_DETACH); err == nil {
		return nil
	}
	if err := unix.Unmount(target, 0); err == nil {
		return nil
	}
	cmd := exec.Command(fusermountBinary(), "-u", "--", target)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("fusermount -u: %w: %s", err, out)
	}
	return nil
}

func fusermountBinary() string {
	if _, err := exec.LookPath("fusermount3"); err == nil {
		return "fusermount3"
	}
	return "fusermount"
}
