package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  ByteSize
	}{
		{"0", 0},
		{"4096", 4096},
		{"4Ki", 4 * KiB},
		{"4KiB", 4 * KiB},
		{"16Mi", 16 * MiB},
		{"1Gi", GiB},
		{"100MB", 100 * MB},
		{"2k", 2 * KB},
		{"1.5Ki", 1536},
		{" 8 Mi ", 8 * MiB},
	}

	for _, tt := range tests {
		got, err := ParseByteSize(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestParseByteSize_Invalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "Mi", "-1Ki", "4Xi", "1.2.3"} {
		_, err := ParseByteSize(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestByteSize_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "4Ki", (4 * KiB).String())
	assert.Equal(t, "16Mi", (16 * MiB).String())
	assert.Equal(t, "1Gi", GiB.String())
	assert.Equal(t, "1000", KB.String())
	assert.Equal(t, "0", ByteSize(0).String())
}

func TestByteSize_UnmarshalText(t *testing.T) {
	t.Parallel()

	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("64Ki")))
	assert.Equal(t, 64*KiB, b)

	assert.Error(t, b.UnmarshalText([]byte("nope")))
}
