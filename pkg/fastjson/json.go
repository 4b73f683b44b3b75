package fastjson

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// Thin wrappers over goccy/go-json so callers never import encoding/json directly.

func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

func NewEncoder(w io.Writer) *gojson.Encoder {
	return gojson.NewEncoder(w)
}

func NewDecoder(r io.Reader) *gojson.Decoder {
	return gojson.NewDecoder(r)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Valid reports whether data is well-formed JSON.
func Valid(data []byte) bool {
	return gojson.Valid(data)
}
