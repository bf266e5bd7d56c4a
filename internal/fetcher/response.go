package fetcher

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"github.com/pagewatch/pagewatch/internal/task"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the media type of the response without parameters.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

// Blob is the decoded form of a binary response.
type Blob struct {
	Type string `json:"type"`
	Size int    `json:"size"`
	// Data is base64 encoded.
	Data string `json:"data"`
}

// Decode converts the body according to dt: parsed JSON, a string, or a
// Blob. Unknown or empty data types decode as text.
func (r *Response) Decode(dt task.DataType) (any, error) {
	switch dt {
	case task.DataTypeJSON:
		var v any
		if err := json.Unmarshal(r.Body, &v); err != nil {
			return nil, fmt.Errorf("decode json response: %w", err)
		}
		return v, nil
	case task.DataTypeBlob:
		return Blob{
			Type: r.ContentType(),
			Size: len(r.Body),
			Data: base64.StdEncoding.EncodeToString(r.Body),
		}, nil
	default:
		return string(r.Body), nil
	}
}
