// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package protocol implements the JSON-RPC 2.0 layer the tool transport
// speaks: request/response framing, ids, error codes, and the mapping
// from the domain error taxonomy onto the wire.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/teradata-labs/masc/pkg/masc"
)

// JSONRPCVersion is the required version string for JSON-RPC 2.0.
const JSONRPCVersion = "2.0"

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"` // nil for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool { return r.ID == nil }

// RequestID can be a string, a number, or null per JSON-RPC 2.0.
type RequestID struct {
	Str *string
	Num *int64
}

func (r *RequestID) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	if r.Str != nil {
		return json.Marshal(r.Str)
	}
	if r.Num != nil {
		return json.Marshal(r.Num)
	}
	return []byte("null"), nil
}

func (r *RequestID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Str = &s
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		r.Num = &n
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	return fmt.Errorf("invalid request ID: %s", data)
}

func (r *RequestID) String() string {
	if r == nil {
		return "null"
	}
	if r.Str != nil {
		return *r.Str
	}
	if r.Num != nil {
		return fmt.Sprintf("%d", *r.Num)
	}
	return "null"
}

// StringID creates a RequestID from a string.
func StringID(s string) *RequestID { return &RequestID{Str: &s} }

// NumericID creates a RequestID from a number.
func NumericID(n int64) *RequestID { return &RequestID{Num: &n} }

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. Data carries the taxonomy kind
// and details for domain errors.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
	ServerError    = -32000 // server-specific range down to -32099
)

// NewError creates a JSON-RPC error, marshalling data when present.
func NewError(code int, message string, data interface{}) *Error {
	e := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// errorData is the wire shape of Error.Data for domain errors.
type errorData struct {
	Kind    masc.ErrorKind         `json:"kind"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorFrom maps a domain error onto the wire: invalid_argument becomes
// InvalidParams and everything else lands in the server range with the
// taxonomy kind in data.kind. Non-domain errors become InternalError.
func ErrorFrom(err error) *Error {
	kind := masc.KindOf(err)
	if kind == "" {
		return NewError(InternalError, err.Error(), nil)
	}
	code := ServerError
	if kind == masc.KindInvalidArgument {
		code = InvalidParams
	}
	var details map[string]interface{}
	var domain *masc.Error
	if errors.As(err, &domain) {
		details = domain.Details
	}
	return NewError(code, err.Error(), errorData{Kind: kind, Details: details})
}

// NewResponse builds a success response, marshalling result.
func NewResponse(id *RequestID, result interface{}) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id *RequestID, e *Error) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: e}
}

// ParseRequest decodes and validates one request frame.
func ParseRequest(data []byte) (*Request, *Error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, NewError(ParseError, "invalid JSON: "+err.Error(), nil)
	}
	if req.JSONRPC != JSONRPCVersion {
		return nil, NewError(InvalidRequest, fmt.Sprintf("jsonrpc must be %q", JSONRPCVersion), nil)
	}
	if req.Method == "" {
		return nil, NewError(InvalidRequest, "method is required", nil)
	}
	return &req, nil
}
