// Package nativehost implements the native messaging host that lets the
// browser extension reach the daemon. Messages use the Chrome/Firefox
// native messaging framing: a 4-byte little-endian length prefix
// followed by a JSON payload.
package nativehost

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize is the browser limit for messages sent by a host.
const MaxMessageSize = 1 << 20

// Request is one action sent by the extension. ID correlates the reply.
type Request struct {
	ID      int             `json:"id"`
	Action  string          `json:"action"`
	Message json.RawMessage `json:"message,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	ID     int             `json:"id"`
	Ok     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ReadMessage reads one length-prefixed message.
func ReadMessage(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length > MaxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes (max %d)", length, MaxMessageSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteMessage writes one length-prefixed message.
func WriteMessage(w io.Writer, msg []byte) error {
	if len(msg) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes (max %d)", len(msg), MaxMessageSize)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(msg))); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// ParseRequest decodes a request payload.
func ParseRequest(b []byte) (*Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MakeSuccessResponse encodes a success reply.
func MakeSuccessResponse(id int, result json.RawMessage) []byte {
	b, _ := json.Marshal(Response{
		ID:     id,
		Ok:     true,
		Result: result,
	})
	return b
}

// MakeErrorResponse encodes a failure reply.
func MakeErrorResponse(id int, err error) []byte {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	b, _ := json.Marshal(Response{
		ID:    id,
		Ok:    false,
		Error: msg,
	})
	return b
}
