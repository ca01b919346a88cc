package hermes

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

type Kind string

const (
	KindEndpoint Kind = "endpoint"
	KindSocket   Kind = "socket"
)

// DefaultIDRounds gives 32 character request ids.
const DefaultIDRounds = 8

// Well-known metadata keys filled in by transports.
const (
	MetaTransport  = "transport"
	MetaRemoteAddr = "remote_addr"
	MetaOrigin     = "origin"
	MetaAddress    = "address"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

type Request struct {
	Tag       Kind     `json:"__hermes__"`
	Address   string   `json:"address,omitempty"`
	RequestID string   `json:"requestId"`
	Path      []string `json:"path"`
	Args      Args     `json:"args"`
}

type Response struct {
	Tag       Kind            `json:"__hermes__"`
	RequestID string          `json:"requestId"`
	Value     json.RawMessage `json:"value,omitempty"`
	Error     *string         `json:"error,omitempty"`
	Protocol  bool            `json:"protocol,omitempty"`
}

// Metadata is transport supplied context handed to handlers next to their
// arguments. It is nil when the router has metadata disabled.
type Metadata map[string]string

func (m Metadata) Get(key string) string {
	if m == nil {
		return ""
	}

	return m[key]
}

func (m Metadata) With(key, value string) Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}

	out[key] = value

	return out
}

// Args holds positional call arguments, each encoded as JSON.
type Args []json.RawMessage

func EncodeArgs(args ...any) (Args, error) {
	out := make(Args, 0, len(args))

	for i, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}

		out = append(out, data)
	}

	return out, nil
}

// Decode unmarshals argument i into v. Arguments the caller did not send
// leave v untouched.
func (a Args) Decode(i int, v any) error {
	if i < 0 || i >= len(a) || len(a[i]) == 0 {
		return nil
	}

	if err := json.Unmarshal(a[i], v); err != nil {
		return fmt.Errorf("decode argument %d: %w", i, err)
	}

	return nil
}

func (a Args) Len() int {
	return len(a)
}

func GenerateID(rounds int) string {
	var b strings.Builder
	b.Grow(4 * max(rounds, 0))

	for range rounds {
		for range 4 {
			b.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
		}
	}

	return b.String()
}

func NewRequestID() string {
	return GenerateID(DefaultIDRounds)
}

func ToSuccessResponse(req Request, value any) Response {
	resp := Response{Tag: KindEndpoint, RequestID: req.RequestID}
	if value == nil {
		return resp
	}

	data, err := json.Marshal(value)
	if err != nil {
		return ToErrorResponse(req, fmt.Errorf("encode result: %w", err))
	}

	if string(data) != "null" {
		resp.Value = data
	}

	return resp
}

func ToErrorResponse(req Request, err error) Response {
	msg := err.Error()

	return Response{
		Tag:       KindEndpoint,
		RequestID: req.RequestID,
		Error:     &msg,
	}
}

// ToProtocolErrorResponse encodes a framework failure for transports that
// must always answer with a response.
func ToProtocolErrorResponse(req Request, err error) Response {
	resp := ToErrorResponse(req, err)
	resp.Protocol = true

	return resp
}

func DecodeRequest(data []byte) (Request, error) {
	var req Request

	if err := json.Unmarshal(data, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "" {
			return Request{}, NewProtocolError("request must be an object")
		}

		return Request{}, protocolErrorf(err, "malformed request:")
	}

	return req, nil
}

func validateRequest(kind Kind, req Request) error {
	if req.Tag == "" {
		return NewProtocolError("request missing __hermes__ key, it likely wasn't made by us")
	}

	if req.Tag != kind {
		return protocolErrorf(nil, "request is not a %s request", kind)
	}

	if req.Address == "" {
		return NewProtocolError("request does not have an address, the transport should have defined this")
	}

	return nil
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}

	return errors.New(fmt.Sprint(v))
}
