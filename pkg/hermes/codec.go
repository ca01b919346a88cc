package hermes

import (
	"context"
	"encoding/json"
	"fmt"
)

// Codec encodes envelopes for transports that move bytes.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

var DefaultCodec Codec = JSONCodec{}

// PeekKind reports the envelope tag of an encoded message without decoding
// the rest of it. It returns "" for anything that is not an envelope.
func PeekKind(data []byte) Kind {
	var probe struct {
		Tag Kind `json:"__hermes__"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return ""
	}

	return probe.Tag
}

// ServeEndpoint decodes an encoded request, dispatches it to h and encodes
// the answer. Protocol failures are answered with a protocol error response
// so the remote caller is never left waiting.
func ServeEndpoint(ctx context.Context, h Handler, codec Codec, data []byte, md Metadata) ([]byte, error) {
	if codec == nil {
		codec = DefaultCodec
	}

	var req Request

	resp, err := func() (Response, error) {
		if err := codec.Decode(data, &req); err != nil {
			return Response{}, protocolErrorf(err, "malformed request:")
		}

		return h.HandleEndpoint(ctx, req, md)
	}()
	if err != nil {
		resp = ToProtocolErrorResponse(req, err)
	}

	out, err := codec.Encode(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}

	return out, nil
}

func EncodeResponse(codec Codec, resp Response) ([]byte, error) {
	if codec == nil {
		codec = DefaultCodec
	}

	return codec.Encode(resp)
}

func DecodeResponse(codec Codec, data []byte) (Response, error) {
	if codec == nil {
		codec = DefaultCodec
	}

	var resp Response
	if err := codec.Decode(data, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	return resp, nil
}
