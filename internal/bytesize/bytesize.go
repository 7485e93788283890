// Package bytesize implements the human-readable byte sizes the ftpd
// configuration uses for the session transfer buffer and the storage
// capacity quota ("32KiB", "1GB", or a plain byte count).
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes. It unmarshals from strings with an optional
// unit suffix: binary units scale by 1024 (Ki/KiB, Mi/MiB, Gi/GiB, Ti/TiB),
// decimal units by 1000 (K/KB, M/MB, G/GB, T/TB), and B or no suffix means
// bytes.
type ByteSize uint64

// Common byte size constants
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

// unitScale maps a lowercased suffix to its multiplier. Suffixes with and
// without the trailing "b" are equivalent.
func unitScale(unit string) (ByteSize, bool) {
	switch strings.TrimSuffix(unit, "b") {
	case "":
		return B, true
	case "k":
		return KB, true
	case "m":
		return MB, true
	case "g":
		return GB, true
	case "t":
		return TB, true
	case "ki":
		return KiB, true
	case "mi":
		return MiB, true
	case "gi":
		return GiB, true
	case "ti":
		return TiB, true
	default:
		return 0, false
	}
}

// ParseByteSize parses a configuration value like "32KiB", "500M", "1.5Gi"
// or "1024" into a ByteSize.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("bytesize: empty value")
	}

	// Split at the first byte that cannot belong to the number.
	cut := len(trimmed)
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if (c < '0' || c > '9') && c != '.' {
			cut = i
			break
		}
	}
	number := trimmed[:cut]
	unit := strings.ToLower(strings.TrimSpace(trimmed[cut:]))

	scale, ok := unitScale(unit)
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q in %q", trimmed[cut:], s)
	}

	if strings.Contains(number, ".") {
		f, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0, fmt.Errorf("bytesize: invalid number in %q", s)
		}
		return ByteSize(f * float64(scale)), nil
	}

	n, err := strconv.ParseUint(number, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number in %q", s)
	}
	return ByteSize(n) * scale, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields work
// directly with the config decode hooks.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String renders the size in the largest binary unit that fits, with two
// decimals, or as a plain byte count below 1 KiB.
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
		return fmt.Sprintf("%dB", uint64(b))
	}
}

// Uint64 returns the size as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the size as an int64, the shape the blockfs backends take
// their capacity in. Sizes above math.MaxInt64 overflow.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
