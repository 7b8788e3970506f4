package data

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// Format identifies a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatForPath picks a format from the file extension. Anything that is
// not recognised is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cue":
		return FormatCUE
	default:
		return FormatJSON
	}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatYAML, FormatCUE:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported document format %q", name)
	}
}

// Decode parses content in the given format. name is only used in
// diagnostics.
func Decode(format Format, name string, content []byte) (Value, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(content)
	case FormatYAML:
		return decodeYAML(content)
	case FormatCUE:
		return decodeCUE(name, content)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}

func decodeJSON(content []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to parse JSON: unexpected data after top-level value")
	}
	return FromNative(raw)
}

func decodeYAML(content []byte) (Value, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Null{}, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	var extra interface{}
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: multiple documents in stream")
	}
	return FromNative(raw)
}

func decodeCUE(name string, content []byte) (Value, error) {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(content, cue.Filename(name))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %s", cueDetails(err))
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE value is not concrete: %s", cueDetails(err))
	}

	// Round-trip through JSON so numbers follow the same classification as
	// JSON documents.
	encoded, err := val.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE value: %s", cueDetails(err))
	}
	return decodeJSON(encoded)
}

func cueDetails(err error) string {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msgs = append(msgs, strings.TrimSpace(cueerrors.Details(e, nil)))
	}
	if len(msgs) == 0 {
		return err.Error()
	}
	return strings.Join(msgs, "; ")
}
