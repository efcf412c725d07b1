package gormstore

import (
	"time"

	"github.com/driftfs/driftfs/pkg/metadata"
)

// Row types map the migration-owned tables. Timestamps are split into unix
// seconds and a nanosecond remainder, matching the on-disk schema.

type inodeRow struct {
	Ino       uint64 `gorm:"column:ino;primaryKey;autoIncrement"`
	Mode      uint32 `gorm:"column:mode"`
	Nlink     uint32 `gorm:"column:nlink"`
	UID       uint32 `gorm:"column:uid"`
	GID       uint32 `gorm:"column:gid"`
	Size      uint64 `gorm:"column:size"`
	Atime     int64  `gorm:"column:atime"`
	Mtime     int64  `gorm:"column:mtime"`
	Ctime     int64  `gorm:"column:ctime"`
	Rdev      uint32 `gorm:"column:rdev"`
	AtimeNsec uint32 `gorm:"column:atime_nsec"`
	MtimeNsec uint32 `gorm:"column:mtime_nsec"`
	CtimeNsec uint32 `gorm:"column:ctime_nsec"`
}

func (inodeRow) TableName() string { return "fs_inode" }

type dentryRow struct {
	ParentIno uint64 `gorm:"column:parent_ino;primaryKey"`
	Name      string `gorm:"column:name;primaryKey"`
	Ino       uint64 `gorm:"column:ino"`
}

func (dentryRow) TableName() string { return "fs_dentry" }

type dataRow struct {
	Ino  uint64 `gorm:"column:ino;primaryKey"`
	Data []byte `gorm:"column:data"`
}

func (dataRow) TableName() string { return "fs_data" }

type symlinkRow struct {
	Ino    uint64 `gorm:"column:ino;primaryKey"`
	Target string `gorm:"column:target"`
}

func (symlinkRow) TableName() string { return "fs_symlink" }

type configRow struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value"`
}

func (configRow) TableName() string { return "fs_config" }

func rowFromInode(inode *metadata.Inode) *inodeRow {
	return &inodeRow{
		Ino:       inode.Ino,
		Mode:      inode.Mode,
		Nlink:     inode.Nlink,
		UID:       inode.UID,
		GID:       inode.GID,
		Size:      inode.Size,
		Rdev:      inode.Rdev,
		Atime:     inode.Atime.Unix(),
		AtimeNsec: uint32(inode.Atime.Nanosecond()),
		Mtime:     inode.Mtime.Unix(),
		MtimeNsec: uint32(inode.Mtime.Nanosecond()),
		Ctime:     inode.Ctime.Unix(),
		CtimeNsec: uint32(inode.Ctime.Nanosecond()),
	}
}

func (r *inodeRow) toInode() *metadata.Inode {
	return &metadata.Inode{
		Ino:   r.Ino,
		Mode:  r.Mode,
		Nlink: r.Nlink,
		UID:   r.UID,
		GID:   r.GID,
		Size:  r.Size,
		Rdev:  r.Rdev,
		Atime: time.Unix(r.Atime, int64(r.AtimeNsec)),
		Mtime: time.Unix(r.Mtime, int64(r.MtimeNsec)),
		Ctime: time.Unix(r.Ctime, int64(r.CtimeNsec)),
	}
}
