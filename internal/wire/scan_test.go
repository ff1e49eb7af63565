package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemScanner_CutsItems(t *testing.T) {
	items := [][]byte{
		{0x01},
		{0x39, 0x01, 0x00},
		{0x62, 'h', 'i'},
		{0x5f, 0x41, 0x00, 0x42, 0x01, 0x02, 0xff},
		{0x9f, 0x01, 0x82, 0x02, 0x03, 0xff},
		{0xbf, 0x01, 0xa1, 0x02, 0x03, 0xff},
		{0xd8, 0x27, 0x1a, 0x00, 0x01, 0x00, 0x00},
		{0xfb, 0x3f, 0xf8, 0, 0, 0, 0, 0, 0},
		{0xf7},
	}
	s := newItemScanner(bytes.NewReader(bytes.Join(items, nil)))

	for _, want := range items {
		got, err := s.item()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	n, err := s.drain()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestItemScanner_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		eof  bool
	}{
		{"empty", nil, true},
		{"truncated head", []byte{0x19, 0x01}, true},
		{"truncated string", []byte{0x63, 'a'}, true},
		{"unterminated array", []byte{0x9f, 0x01}, true},
		{"stray break", []byte{0xff}, false},
		{"reserved info", []byte{0x1c}, false},
		{"mixed chunk", []byte{0x5f, 0x61, 'a', 0xff}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newItemScanner(bytes.NewReader(tt.data)).item()
			require.Error(t, err)
			assert.Equal(t, tt.eof, err == io.ErrUnexpectedEOF, err)
		})
	}
}

func TestCountTag(t *testing.T) {
	// 100([28(1), {_ 28(2): 28([])}, h'1c'])
	data := []byte{0xd8, 0x64, 0x83, 0xd8, 0x1c, 0x01, 0xbf, 0xd8, 0x1c, 0x02, 0xd8, 0x1c, 0x80, 0xff, 0x41, 0x1c}

	n, err := countTag(data, tagShareable)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = countTag(data[:5], tagShareable)
	assert.Error(t, err)
}
