package transport

import "encoding/json"

// Envelope wraps every catalog API response. Data holds a record, a record
// list or the raw snapshot document; Code carries the domain error code on
// failures (VERSION_CONFLICT, HAS_LINKED_CHILDREN, ...).
type Envelope struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
	Error  any    `json:"error,omitempty"`
	Meta   any    `json:"meta,omitempty"`
}

func NewSuccess(data any, meta any) Envelope {
	return Envelope{Status: "success", Data: data, Meta: meta}
}

// NewError builds a failure envelope; code is a domain.ErrorCode string.
func NewError(code string, err any, meta any) Envelope {
	return Envelope{Status: "error", Code: code, Error: err, Meta: meta}
}

// String renders the envelope for log fields.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
