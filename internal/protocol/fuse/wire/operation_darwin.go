//go:build darwin

package wire

// SetVolNameOp renames the mounted volume (macOS extension).
type SetVolNameOp struct {
	Name string
}

// GetXTimesOp fetches backup/creation times (macOS extension).
type GetXTimesOp struct{}

// ExchangeOp atomically swaps two directory entries (macOS extension).
type ExchangeOp struct {
	OldDir  uint64
	NewDir  uint64
	Options uint64
	OldName string
	NewName string
}

// XTimesOut mirrors struct fuse_getxtimes_out.
type XTimesOut struct {
	Bkuptime     uint64
	Crtime       uint64
	BkuptimeNsec uint32
	CrtimeNsec   uint32
}

func (*SetVolNameOp) Opcode() Opcode { return OpSetVolName }
func (*GetXTimesOp) Opcode() Opcode  { return OpGetXTimes }
func (*ExchangeOp) Opcode() Opcode   { return OpExchange }

// decodePlatform handles the opcodes only the darwin kernel emits.
func decodePlatform(opcode Opcode, d *decoder) (Operation, error) {
	switch opcode {
	case OpSetVolName:
		name, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &SetVolNameOp{Name: name}, nil
	case OpGetXTimes:
		return &GetXTimesOp{}, nil
	case OpExchange:
		olddir, err := d.u64()
		if err != nil {
			return nil, err
		}
		newdir, err := d.u64()
		if err != nil {
			return nil, err
		}
		options, err := d.u64()
		if err != nil {
			return nil, err
		}
		oldName, err := d.cstring()
		if err != nil {
			return nil, err
		}
		newName, err := d.cstring()
		if err != nil {
			return nil, err
		}
		return &ExchangeOp{
			OldDir:  olddir,
			NewDir:  newdir,
			Options: options,
			OldName: oldName,
			NewName: newName,
		}, nil
	}
	return nil, &DecodeError{Opcode: opcode, Reason: "unknown opcode"}
}
