package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    ByteSize
		wantErr bool
	}{
		{"0", 0, false},
		{"4096", 4096, false},
		{"512Ki", 512 * KiB, false},
		{"64mi", 64 * MiB, false},
		{"1.5Gi", GiB + GiB/2, false},
		{"100MB", 100 * MB, false},
		{" 2 KB ", 2000, false},
		{"", 0, true},
		{"12XB", 0, true},
		{"-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshalTextReadsBack(t *testing.T) {
	for _, size := range []ByteSize{0, 1000, 3 * KiB, 64 * MiB, 2 * GiB, 1536} {
		text, err := size.MarshalText()
		require.NoError(t, err)

		var got ByteSize
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, size, got, "text %q", text)
	}

	text, _ := (64 * MiB).MarshalText()
	assert.Equal(t, "64Mi", string(text))
}

func TestString(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "1.50KiB", ByteSize(1536).String())
	assert.Equal(t, "64.00MiB", (64 * MiB).String())
}
