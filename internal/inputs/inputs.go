// Package inputs loads input documents and normalizes them to JSON.
//
// Seeds may be written as JSON, YAML or CUE. Whatever the source format,
// backends only ever see JSON bytes.
package inputs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnreadable marks inputs whose file could not be read.
	ErrUnreadable = errors.New("input unreadable")
	// ErrUndecodable marks inputs that are not a valid document.
	ErrUndecodable = errors.New("input undecodable")
)

// Load reads path and returns its content as JSON.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return Decode(path, data)
}

// Decode converts data to JSON based on the extension of name. Unknown
// extensions are treated as JSON.
func Decode(name string, data []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		out, err = fromYAML(data)
	case ".cue":
		out, err = fromCUE(name, data)
	default:
		out, err = fromJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUndecodable, name, err)
	}
	return out, nil
}

func fromJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, errors.New("invalid JSON")
	}
	return trimmed, nil
}

func fromYAML(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("empty YAML document")
	}
	return json.Marshal(doc)
}

func fromCUE(name string, data []byte) ([]byte, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	return v.MarshalJSON()
}
