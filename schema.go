package mcp

import (
	"encoding/json"
	"fmt"
)

// RequestID holds a JSON-RPC request identifier in its raw wire form. The
// protocol treats identifiers as opaque: a string, number or null sent by a
// client is echoed back in the response byte for byte, and an omitted
// identifier stays omitted. A zero-value RequestID marshals as null.
type RequestID json.RawMessage

// JSONRPCMessage represents a JSON-RPC 2.0 message exchanged with clients.
// It can represent either a request, a response, or an error response
// depending on which fields are populated:
//   - Request: JSONRPC, ID, Method, and Params are set
//   - Response: JSONRPC, ID, and Result are set
//   - Error response: JSONRPC, ID, and Error are set
type JSONRPCMessage struct {
	// JSONRPC must always be "2.0" per the JSON-RPC specification
	JSONRPC string `json:"jsonrpc"`
	// ID pairs a response with its request and is echoed verbatim
	ID RequestID `json:"id,omitempty"`
	// Method contains the RPC method name for requests
	Method string `json:"method,omitempty"`
	// Params contains the parameters for the method call as a raw JSON message
	Params json.RawMessage `json:"params,omitempty"`
	// Result contains the successful response data as a raw JSON message
	Result json.RawMessage `json:"result,omitempty"`
	// Error contains error details if the request failed
	Error *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents an error response in the JSON-RPC 2.0 protocol.
// It follows the standard error object format defined in the JSON-RPC 2.0
// specification.
type JSONRPCError struct {
	// Code indicates the error type that occurred.
	// Must use standard JSON-RPC error codes or custom codes outside the reserved range.
	Code int `json:"code"`

	// Message provides a short description of the error.
	// Should be limited to a concise single sentence.
	Message string `json:"message"`

	// Data contains additional information about the error.
	// The value is unstructured and may be omitted.
	Data map[string]any `json:"data,omitempty"`
}

// InitializeParams contains the parameters a client sends with an initialize
// request. The session constructed for the client does not depend on them,
// but they are decoded and logged.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion,omitempty"`
	Capabilities    ClientCapabilities `json:"capabilities,omitempty"`
	ClientInfo      Info               `json:"clientInfo,omitempty"`
}

// InitializeResult is the result of an initialize request: the protocol
// version and capabilities the server speaks, its identity, and a freshly
// issued session identifier.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Info               `json:"serverInfo"`
	SessionID       string             `json:"sessionId"`
}

// ListToolsParams contains parameters for listing available tools. The
// operation takes no parameters; the type exists so the dispatch boundary can
// reject a params payload of the wrong shape.
type ListToolsParams struct{}

// ListToolsResult represents the list of tools returned by tools/list,
// in registration order.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams contains parameters for executing a specific tool.
type CallToolParams struct {
	// Name is the unique identifier of the tool to execute
	Name string `json:"name"`

	// Arguments is a map of argument name-value pairs
	// Must satisfy the tool's declared InputSchema
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult represents the outcome of a successful tool invocation.
// Failed invocations are reported as JSON-RPC error responses instead.
type CallToolResult struct {
	Content []Content `json:"content"`
}

// ServerCapabilities represents server capabilities.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ClientCapabilities represents client capabilities.
type ClientCapabilities struct {
	Roots    *RootsCapability    `json:"roots,omitempty"`
	Sampling *SamplingCapability `json:"sampling,omitempty"`
}

// ToolsCapability represents tools-specific capabilities.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// RootsCapability represents roots-specific capabilities.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// SamplingCapability represents sampling-specific capabilities.
type SamplingCapability struct{}

// Info contains metadata about a server or client instance including its name and version.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool defines a callable tool with its input schema.
// InputSchema defines the expected format of arguments for tools/call.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Content represents a piece of tool output with its type. This server
// currently produces text content only.
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// ContentType represents the type of content in tool results.
type ContentType string

// ContentTypeText marks plain text content.
const ContentTypeText ContentType = "text"

const (
	// JSONRPCVersion specifies the JSON-RPC protocol version used for communication.
	JSONRPCVersion = "2.0"

	// MethodInitialize is the method name for opening a protocol session.
	MethodInitialize = "initialize"
	// MethodToolsList is the method name for retrieving a list of available tools.
	MethodToolsList = "tools/list"
	// MethodToolsCall is the method name for invoking a specific tool.
	MethodToolsCall = "tools/call"
	// MethodLegacyToolsList is the mcp-prefixed alias accepted alongside MethodToolsList.
	MethodLegacyToolsList = "mcp:list-tools"
	// MethodLegacyToolsCall is the mcp-prefixed alias accepted alongside MethodToolsCall.
	MethodLegacyToolsCall = "mcp:call-tool"

	protocolVersion = "2024-11-05"

	defaultServerName    = "talebook-mcp"
	defaultServerVersion = "1.0.0"

	jsonRPCParseErrorCode     = -32700
	jsonRPCInvalidRequestCode = -32600
	jsonRPCMethodNotFoundCode = -32601
	jsonRPCInvalidParamsCode  = -32602
	jsonRPCInternalErrorCode  = -32603
)

// nullRequestID is the identifier used on error responses to requests whose
// own identifier could not be recovered.
var nullRequestID = RequestID("null")

// UnmarshalJSON implements json.Unmarshaler, capturing the identifier bytes
// exactly as sent. A JSON null is stored so it can be told apart from an
// identifier that was never present.
func (r *RequestID) UnmarshalJSON(data []byte) error {
	if r == nil {
		return fmt.Errorf("RequestID: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[:0], data...)
	return nil
}

// MarshalJSON implements json.Marshaler, emitting the identifier bytes
// unchanged.
func (r RequestID) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

func (j JSONRPCError) Error() string {
	return fmt.Sprintf("request error, code: %d, message: %s, data %v", j.Code, j.Message, j.Data)
}
