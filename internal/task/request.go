package task

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// RequestConfig is the request snapshot used for every check of a task.
type RequestConfig struct {
	// Type is the HTTP method (case-insensitive, default GET).
	Type    string            `json:"type,omitempty"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	// Data is sent as the body of POST, PUT and PATCH requests. A JSON
	// string is sent verbatim; any other JSON value is sent encoded.
	// "", 0, false and null send no body.
	Data     json.RawMessage `json:"data,omitempty"`
	DataType DataType        `json:"dataType,omitempty"`
	// Timeout is in milliseconds and spans all retry attempts.
	Timeout int `json:"timeout,omitempty"`
}

// UnmarshalJSON decodes a request config the way a browser fetch would
// coerce it: header values of any scalar type become strings and a
// numeric string timeout is accepted. An unusable timeout falls back to
// the default.
func (rc *RequestConfig) UnmarshalJSON(b []byte) error {
	type plain RequestConfig
	var aux struct {
		plain
		Headers map[string]any `json:"headers,omitempty"`
		Timeout any            `json:"timeout,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*rc = RequestConfig(aux.plain)
	rc.Headers = nil
	if len(aux.Headers) > 0 {
		rc.Headers = make(map[string]string, len(aux.Headers))
		for k, v := range aux.Headers {
			if v == nil {
				continue
			}
			rc.Headers[k] = headerValue(v)
		}
	}
	rc.Timeout = timeoutMillis(aux.Timeout)
	return nil
}

func headerValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

func timeoutMillis(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return int(f)
	default:
		return 0
	}
}

// Method returns the upper-cased request method.
func (rc *RequestConfig) Method() string {
	if rc.Type == "" {
		return DefaultMethod
	}
	return strings.ToUpper(rc.Type)
}

func (rc *RequestConfig) hasBody() bool {
	switch rc.Method() {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	switch string(bytes.TrimSpace(rc.Data)) {
	case "", "null", `""`, "false", "0":
		return false
	}
	return true
}

// Body returns the encoded request body, or nil when the method
// carries none.
func (rc *RequestConfig) Body() []byte {
	if !rc.hasBody() {
		return nil
	}
	var s string
	if err := json.Unmarshal(rc.Data, &s); err == nil {
		return []byte(s)
	}
	return bytes.TrimSpace(rc.Data)
}

// Header returns the request headers. A JSON content type is added when a
// body is sent without one.
func (rc *RequestConfig) Header() http.Header {
	h := make(http.Header, len(rc.Headers)+1)
	for k, v := range rc.Headers {
		h.Set(k, v)
	}
	if rc.hasBody() && h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	return h
}
