// Package codec encodes the values exchanged with the generated script.
//
// Values travel as CBOR (RFC 8949), a self-describing tagged format, so the
// two sides only need to agree on the data model, not on any runtime's
// object layout. The script side reads and writes it with the cbor2 package.
package codec

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// ErrDecode marks a payload that could not be decoded.
var ErrDecode = errors.New("decode value")

// Module is the name of the Python module that speaks the same format.
const Module = "cbor2"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build encode mode: %v", err))
	}
	// Maps decode to map[string]any so results can be re-emitted as JSON;
	// a payload with non-string map keys is rejected.
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build decode mode: %v", err))
	}
}

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a single value from data.
func Unmarshal(data []byte) (any, error) {
	var v any
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}

// Encode writes v to w.
func Encode(w io.Writer, v any) error {
	if err := encMode.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return nil
}

// Decode reads a single value from r.
func Decode(r io.Reader) (any, error) {
	var v any
	if err := decMode.NewDecoder(r).Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}
