// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode serializes with Core Deterministic Encoding (RFC 8949
// §4.2), so the same snapshot always produces the same bytes.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields, which
// lets an older binary read snapshots written by a newer one.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: deterministic encode mode: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Maps decoded into an any-typed target come out as
		// map[string]any rather than the CBOR default of
		// map[interface{}]interface{}. All Gantry map keys are
		// strings, and the default type breaks encoding/json
		// round-trips. Struct targets are unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: decode mode: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder streams CBOR values to a writer. Aliased here so callers
// depend on lib/codec alone, not on fxamacker/cbor.
type Encoder = cbor.Encoder

// Decoder streams CBOR values from a reader. Aliased for the same
// reason as Encoder.
type Decoder = cbor.Decoder

// RawMessage is a raw encoded CBOR value, used to delay decoding or
// pre-encode output.
type RawMessage = cbor.RawMessage

// NewEncoder returns an encoder writing to w in the package's
// deterministic mode.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a decoder reading from r in the package's
// decode mode.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}
