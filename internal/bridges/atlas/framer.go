package atlas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Wire method names understood by the processor.
const (
	MethodGet         = "get"
	MethodSet         = "set"
	MethodBump        = "bmp"
	MethodSubscribe   = "sub"
	MethodUnsubscribe = "unsub"
	MethodUpdate      = "update"
)

// Value formats. The processor reports numeric parameters either as an
// absolute value (dB, index) or as a percentage of their range.
const (
	FormatVal = "val"
	FormatPct = "pct"
	FormatStr = "str"
)

const (
	jsonRPCVersion = "2.0"

	// frameTerminator ends every outgoing request.
	frameTerminator = "\r\n"

	// maxFrameSize bounds a single buffered frame. Real traffic is a few
	// hundred bytes; anything larger means the stream lost sync.
	maxFrameSize = 64 * 1024
)

// Params is the parameter block carried by get/set/bmp/sub requests.
type Params struct {
	Param string `json:"param"`
	Value any    `json:"value,omitempty"`
	Fmt   string `json:"fmt,omitempty"`
}

// Request is an outgoing JSON-RPC request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  Params `json:"params"`
	ID      *int64 `json:"id,omitempty"`
}

// RPCError is the error object of a failed response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// Message is any inbound frame: a response (ID set) or an unsolicited
// notification such as "update" (ID nil).
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      *int64          `json:"id,omitempty"`
}

// Value is a parameter value as reported by the processor. Only the
// fields matching the requested format are set.
type Value struct {
	Param string   `json:"param"`
	Val   *float64 `json:"val,omitempty"`
	Pct   *float64 `json:"pct,omitempty"`
	Str   *string  `json:"str,omitempty"`
}

// Number returns the numeric reading, preferring the absolute value.
func (v Value) Number() (float64, bool) {
	switch {
	case v.Val != nil:
		return *v.Val, true
	case v.Pct != nil:
		return *v.Pct, true
	}
	return 0, false
}

// String renders the value for logs and MQTT payloads.
func (v Value) String() string {
	if v.Str != nil {
		return *v.Str
	}
	if n, ok := v.Number(); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// Equal reports whether two readings carry the same data.
func (v Value) Equal(o Value) bool {
	return v.Param == o.Param && eqFloat(v.Val, o.Val) && eqFloat(v.Pct, o.Pct) && eqString(v.Str, o.Str)
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// EncodeRequest serialises req and appends the frame terminator.
func EncodeRequest(req Request) ([]byte, error) {
	if req.JSONRPC == "" {
		req.JSONRPC = jsonRPCVersion
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s request: %w", ErrInvalidMessage, req.Method, err)
	}
	return append(data, frameTerminator...), nil
}

// ParseMessage decodes one frame.
func ParseMessage(frame []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.ID == nil && msg.Method == "" {
		return Message{}, fmt.Errorf("%w: neither id nor method present", ErrInvalidMessage)
	}
	return msg, nil
}

// DecodeValue extracts a Value from a result or params payload. The
// processor answers with an object, a one-element array, or (for
// set/bmp acknowledgements) nothing at all.
func DecodeValue(raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Value{}, nil
	}

	switch raw[0] {
	case '{':
		var v Value
		if err := json.Unmarshal(raw, &v); err != nil {
			return Value{}, fmt.Errorf("%w: value: %w", ErrInvalidMessage, err)
		}
		return v, nil
	case '[':
		var vs []Value
		if err := json.Unmarshal(raw, &vs); err != nil {
			return Value{}, fmt.Errorf("%w: value list: %w", ErrInvalidMessage, err)
		}
		if len(vs) == 0 {
			return Value{}, nil
		}
		return vs[0], nil
	default:
		// Bare acknowledgements such as "OK".
		return Value{}, nil
	}
}

// Decoder splits a TCP byte stream into frames. It is not safe for
// concurrent use; each session's read loop owns one.
type Decoder struct {
	buf []byte
	max int
}

// NewDecoder returns a Decoder with the default frame size limit.
func NewDecoder() *Decoder {
	return &Decoder{max: maxFrameSize}
}

// Feed appends chunk to the buffer and returns every complete frame,
// without its terminator. Empty frames are dropped. Returned slices are
// copies and stay valid after later calls.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(d.buf[:i], "\r")
		if len(bytes.TrimSpace(line)) > 0 {
			frames = append(frames, append([]byte(nil), line...))
		}
		d.buf = d.buf[i+1:]
	}

	if len(d.buf) > d.max {
		n := len(d.buf)
		d.buf = nil
		return frames, fmt.Errorf("%w: %d bytes without terminator", ErrFrameTooLarge, n)
	}

	// Release the backing array once fully drained.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
