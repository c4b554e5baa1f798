package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// InputArtifact is the design file submitted for routing. Bytes are never modified after load.
type InputArtifact struct {
	Filename string
	Data     []byte
}

// OutputArtifact is the routed result returned by the engine.
type OutputArtifact struct {
	Filename string
	Data     []byte
}

// LoadInput reads the whole design file into memory.
// A missing or unreadable file is an input upload failure.
func LoadInput(path string) (InputArtifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return InputArtifact{}, fmt.Errorf("%w: input file does not exist: %s", ErrInputUpload, path)
		}
		return InputArtifact{}, fmt.Errorf("%w: %w", ErrInputUpload, err)
	}
	if info.IsDir() {
		return InputArtifact{}, fmt.Errorf("%w: input path is a directory: %s", ErrInputUpload, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return InputArtifact{}, fmt.Errorf("%w: read input: %w", ErrInputUpload, err)
	}
	return InputArtifact{Filename: path, Data: data}, nil
}

// Encode returns the transport form of the artifact bytes.
func (a InputArtifact) Encode() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// DecodeOutput turns the engine's transport payload back into raw bytes.
func DecodeOutput(filename, payload string) (OutputArtifact, error) {
	if payload == "" {
		return OutputArtifact{}, fmt.Errorf("%w: no output received from job", ErrOutputMissing)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return OutputArtifact{}, fmt.Errorf("%w: decode output: %w", ErrOutputMissing, err)
	}
	return OutputArtifact{Filename: filename, Data: data}, nil
}
