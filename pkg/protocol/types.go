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
package protocol

// ProtocolVersion is the tool protocol revision the server advertises.
const ProtocolVersion = "2024-11-05"

// Method names the transport dispatches on.
const (
	MethodInitialize    = "initialize"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodCancelRequest = "$/cancelRequest"
	MethodPing          = "ping"
)

// InitializeParams are the client's opening handshake.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is the server's half of the handshake.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

// Implementation identifies one side of the connection.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities declares what the server supports.
type ServerCapabilities struct {
	Tools         *ToolsCapability         `json:"tools,omitempty"`
	Notifications *NotificationsCapability `json:"notifications,omitempty"`
}

type ToolsCapability struct{}

// NotificationsCapability advertises the SSE stream and its resume
// contract.
type NotificationsCapability struct {
	SSE    bool `json:"sse"`
	Resume bool `json:"resume"`
}

// Tool is one entry in tools/list.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolListResult is the response from tools/list.
type ToolListResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams are the parameters of tools/call.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// CallToolResult is the response from tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
}

// Content is one result item; MASC tools emit JSON-encoded text items.
type Content struct {
	Type string `json:"type"` // "text"
	Text string `json:"text,omitempty"`
}

// TextResult wraps a JSON payload as a single-item tool result.
func TextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// CancelParams are the parameters of $/cancelRequest.
type CancelParams struct {
	ID *RequestID `json:"id"`
}
