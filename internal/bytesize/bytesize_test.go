package bytesize

import (
	"testing"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain number", "1024", 1024, false},
		{"plain large", "1073741824", 1073741824, false},

		{"bytes suffix", "1024B", 1024, false},
		{"bytes lowercase", "1024b", 1024, false},

		{"kibibytes", "1Ki", KiB, false},
		{"kibibytes long", "1KiB", KiB, false},
		{"mebibytes", "100Mi", 100 * MiB, false},
		{"gibibytes", "1Gi", GiB, false},
		{"tebibytes", "1TiB", TiB, false},

		{"kilobytes", "1K", KB, false},
		{"megabytes", "100MB", 100 * MB, false},
		{"gigabytes", "1G", GB, false},
		{"terabytes", "1TB", TB, false},

		{"lowercase unit", "1gi", GiB, false},
		{"uppercase unit", "1GI", GiB, false},

		{"leading space", "  1Gi", GiB, false},
		{"trailing space", "1Gi  ", GiB, false},
		{"space before unit", "1 Gi", GiB, false},

		{"fractional mebibytes", "1.5Mi", ByteSize(1.5 * 1024 * 1024), false},
		{"fractional gibibytes", "0.5Gi", ByteSize(0.5 * 1024 * 1024 * 1024), false},

		{"max_write default", "1Mi", MiB, false},
		{"max_readahead default", "128Ki", 128 * KiB, false},

		{"empty string", "", 0, true},
		{"whitespace only", "   ", 0, true},
		{"unknown unit", "1Xi", 0, true},
		{"negative", "-1Gi", 0, true},
		{"unit only", "Gi", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseByteSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("256Ki")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if b != 256*KiB {
		t.Errorf("got %d, want %d", b, 256*KiB)
	}

	if err := b.UnmarshalText([]byte("nonsense")); err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{512, "512B"},
		{KiB, "1.00KiB"},
		{MiB + 512*KiB, "1.50MiB"},
		{GiB, "1.00GiB"},
		{2 * TiB, "2.00TiB"},
	}

	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("(%d).String() = %q, want %q", uint64(tt.size), got, tt.want)
		}
	}
}

func TestConversions(t *testing.T) {
	b := ByteSize(1 << 20)
	if b.Uint64() != 1<<20 {
		t.Errorf("Uint64() = %d", b.Uint64())
	}
	if b.Int64() != 1<<20 {
		t.Errorf("Int64() = %d", b.Int64())
	}
}
