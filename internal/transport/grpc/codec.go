package transportgrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype callers select with grpc.CallContentSubtype.
const CodecName = "json"

// jsonCodec carries plain Go structs over gRPC, so internal callers need no generated stubs.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
