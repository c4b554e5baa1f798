package domain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadInput_MissingFile(t *testing.T) {
	_, err := LoadInput(filepath.Join(t.TempDir(), "nope.dsn"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInputUpload))
}

func TestLoadInput_Directory(t *testing.T) {
	_, err := LoadInput(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInputUpload)
}

func TestLoadInput_ReadsWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.dsn")
	require.NoError(t, os.WriteFile(path, []byte("(pcb board)"), 0o644))

	in, err := LoadInput(path)
	require.NoError(t, err)
	assert.Equal(t, path, in.Filename)
	assert.Equal(t, []byte("(pcb board)"), in.Data)
}

func TestArtifact_RoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"text":   []byte("(session routed (routes))"),
		"binary": {0x00, 0xff, 0x10, 0x80, 0x7f},
		"utf8":   []byte("trace ✓ µm"),
	}

	for name, data := range payloads {
		t.Run(name, func(t *testing.T) {
			in := InputArtifact{Filename: "x.dsn", Data: data}
			out, err := DecodeOutput("x.ses", in.Encode())
			require.NoError(t, err)
			assert.Equal(t, data, out.Data)
			assert.Equal(t, "x.ses", out.Filename)
		})
	}
}

func TestDecodeOutput_Empty(t *testing.T) {
	_, err := DecodeOutput("out.ses", "")
	assert.ErrorIs(t, err, ErrOutputMissing)
}

func TestDecodeOutput_Garbage(t *testing.T) {
	_, err := DecodeOutput("out.ses", "%%% not base64 %%%")
	assert.ErrorIs(t, err, ErrOutputMissing)
}
