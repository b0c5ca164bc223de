// Package serialization wraps payload encoding and decoding with wall-clock
// profiling. The exchange format is pluggable; JSON is the default and
// MessagePack is available for callers that exchange binary payloads.
package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	reserrors "github.com/toolpool-dev/toolpool/internal/resource/errors"
)

// Codec defines the interface that encodes and decodes exchanged payloads.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Codec names accepted by ForName.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// JSONCodec encodes payloads as JSON text.
type JSONCodec struct{}

// Marshal implements Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name implements Codec.
func (JSONCodec) Name() string { return CodecJSON }

// MsgpackCodec encodes payloads as MessagePack.
type MsgpackCodec struct{}

// Marshal implements Codec.
func (MsgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

// Unmarshal implements Codec.
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// Name implements Codec.
func (MsgpackCodec) Name() string { return CodecMsgpack }

// ForName returns the codec registered under name.
func ForName(name string) (Codec, error) {
	switch name {
	case CodecJSON, "":
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", reserrors.ErrUnknownCodec, name)
	}
}
