package sandbox

import (
	"encoding/json"
	"strings"

	"github.com/pagewatch/pagewatch/internal/task"
)

// ActionExecute is the only action a Payload carries.
const ActionExecute = "executeCodeInSandbox"

// Payload asks a frame to run Code with ParamName bound to ParamValue.
type Payload struct {
	Action     string `json:"action"`
	ParamName  string `json:"paramName"`
	ParamValue any    `json:"paramValue"`
	Code       string `json:"code"`
}

// Result is the one-shot message a frame posts when the handler settles.
type Result struct {
	Success bool `json:"success"`
	// Result is the handler's return value encoded as JSON.
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	// Logs holds console output captured during the run.
	Logs []string `json:"logs,omitempty"`
}

// AjaxOptions is the subset of jQuery.ajax settings a handler may pass.
type AjaxOptions struct {
	URL      string            `json:"url"`
	Type     string            `json:"type,omitempty"`
	Method   string            `json:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Data     json.RawMessage   `json:"data,omitempty"`
	DataType string            `json:"dataType,omitempty"`
	Timeout  int               `json:"timeout,omitempty"`
}

// RequestConfig converts the options to the request model the fetcher
// understands. Method takes precedence over Type as in jQuery.
func (o AjaxOptions) RequestConfig() task.RequestConfig {
	method := o.Type
	if o.Method != "" {
		method = o.Method
	}
	return task.RequestConfig{
		Type:     method,
		URL:      o.URL,
		Headers:  o.Headers,
		Data:     o.Data,
		DataType: task.DataType(strings.ToLower(o.DataType)),
		Timeout:  o.Timeout,
	}
}

// ajaxRequest travels from a frame up to its host.
type ajaxRequest struct {
	PromiseID int
	Options   AjaxOptions
}

// ajaxResponse travels from the host back down to the frame that asked.
type ajaxResponse struct {
	PromiseID int
	Success   bool
	Result    json.RawMessage
	Error     string
}

// frameMessage is anything a frame posts to its host. Exactly one of
// ajax and result is set.
type frameMessage struct {
	frameID int
	ajax    *ajaxRequest
	result  *Result
}
