// Package metadata defines the persistence contract of DriftFS: inodes,
// directory entries, inline file data, symlink targets and filesystem
// configuration. Implementations live in subpackages; pkg/metadata/gormstore
// is the SQLite/PostgreSQL one.
package metadata

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by every Store implementation.
var (
	// ErrNotFound means the inode, dentry or key does not exist.
	ErrNotFound = errors.New("metadata: not found")

	// ErrExists means a dentry with that name already exists in the parent.
	ErrExists = errors.New("metadata: already exists")

	// ErrNotEmpty means a directory still has entries.
	ErrNotEmpty = errors.New("metadata: directory not empty")
)

// RootIno is the inode number of the filesystem root.
const RootIno = 1

// Inode is one filesystem object. Mode carries the full st_mode including
// the file type bits.
type Inode struct {
	Ino   uint64
	Mode  uint32
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  uint64
	Rdev  uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// IsDir reports whether the inode is a directory.
func (i *Inode) IsDir() bool { return i.Mode&0o170000 == 0o040000 }

// IsSymlink reports whether the inode is a symbolic link.
func (i *Inode) IsSymlink() bool { return i.Mode&0o170000 == 0o120000 }

// Dentry links a name inside a parent directory to an inode.
type Dentry struct {
	ParentIno uint64
	Name      string
	Ino       uint64
}

// Stats summarizes the store for STATFS and the control API.
type Stats struct {
	Inodes    uint64
	Dentries  uint64
	DataBytes uint64
}

// Store is the metadata persistence contract. All methods are safe for
// concurrent use.
type Store interface {
	// EnsureRoot creates the root directory inode if the store is empty.
	EnsureRoot(ctx context.Context, uid, gid uint32) error

	// CreateInode persists a new inode and assigns its number.
	CreateInode(ctx context.Context, inode *Inode) error
	GetInode(ctx context.Context, ino uint64) (*Inode, error)
	UpdateInode(ctx context.Context, inode *Inode) error
	DeleteInode(ctx context.Context, ino uint64) error

	// CreateDentry fails with ErrExists when the name is taken.
	CreateDentry(ctx context.Context, dentry *Dentry) error
	GetDentry(ctx context.Context, parentIno uint64, name string) (*Dentry, error)
	ListDentries(ctx context.Context, parentIno uint64) ([]Dentry, error)
	DeleteDentry(ctx context.Context, parentIno uint64, name string) error
	CountDentries(ctx context.Context, parentIno uint64) (int64, error)

	// ReadData returns the inline file content, empty when none was written.
	ReadData(ctx context.Context, ino uint64) ([]byte, error)
	WriteData(ctx context.Context, ino uint64, data []byte) error
	DeleteData(ctx context.Context, ino uint64) error

	GetSymlink(ctx context.Context, ino uint64) (string, error)
	SetSymlink(ctx context.Context, ino uint64, target string) error
	DeleteSymlink(ctx context.Context, ino uint64) error

	// GetConfig and SetConfig read and write the fs_config key/value table.
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	Stats(ctx context.Context) (*Stats, error)

	Close() error
}
