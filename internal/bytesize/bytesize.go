// Package bytesize parses human-readable sizes like "1Gi" or "256KB" for
// config limits such as mount.max_write.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes. It unmarshals from plain numbers, binary
// units (Ki/Mi/Gi/Ti, x1024) and decimal units (K/M/G/T, x1000), with an
// optional B suffix on either.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var units = map[string]ByteSize{
	"":    B,
	"b":   B,
	"k":   KB,
	"kb":  KB,
	"m":   MB,
	"mb":  MB,
	"g":   GB,
	"gb":  GB,
	"t":   TB,
	"tb":  TB,
	"ki":  KiB,
	"kib": KiB,
	"mi":  MiB,
	"mib": MiB,
	"gi":  GiB,
	"gib": GiB,
	"ti":  TiB,
	"tib": TiB,
}

// ParseByteSize parses strings like "1Gi", "500Mi", "100MB" or "1024".
// Fractional values ("1.5Mi") are allowed and truncate to whole bytes.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	// Split at the first character that cannot be part of the number.
	split := len(s)
	for i, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			split = i
			break
		}
	}
	numStr := s[:split]
	unit := strings.ToLower(strings.TrimSpace(s[split:]))

	if numStr == "" {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}
	multiplier, ok := units[unit]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", s[split:])
	}

	if strings.Contains(numStr, ".") {
		num, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", numStr)
		}
		return ByteSize(num * float64(multiplier)), nil
	}

	num, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", numStr)
	}
	return ByteSize(num) * multiplier, nil
}

// UnmarshalText lets ByteSize fields decode straight from config strings.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String renders the size with the largest binary unit that fits.
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// Uint64 returns the size as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the size as an int64; values above math.MaxInt64 wrap.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
