package mcp_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcp "github.com/talebook/talebook-mcp"
)

func postJSON(t *testing.T, client *http.Client, url, body string) *http.Response {
	t.Helper()

	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to send request: %v", err)
	}
	return resp
}

func decodeMessage(t *testing.T, resp *http.Response) mcp.JSONRPCMessage {
	t.Helper()

	var msg mcp.JSONRPCMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return msg
}

func TestHTTPServer_Dispatch(t *testing.T) {
	server := mcp.NewHTTPServer(newTestDispatcher(t))
	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	tests := []struct {
		name      string
		request   string
		wantError int
	}{
		{
			name:    "initialize",
			request: `{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		},
		{
			name:    "list tools",
			request: `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		},
		{
			name:    "call tool",
			request: `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_books_count"}}`,
		},
		{
			name:      "unknown method still answers with status 200",
			request:   `{"jsonrpc":"2.0","id":4,"method":"bogus"}`,
			wantError: -32601,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, testServer.Client(), testServer.URL, tt.request)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("got status %d, want 200", resp.StatusCode)
			}

			msg := decodeMessage(t, resp)
			if tt.wantError == 0 {
				if msg.Error != nil {
					t.Fatalf("unexpected error: %v", msg.Error)
				}
				if len(msg.Result) == 0 {
					t.Error("response carries no result")
				}
				return
			}

			if msg.Error == nil {
				t.Fatal("expected an error response")
			}
			if msg.Error.Code != tt.wantError {
				t.Errorf("got code %d, want %d", msg.Error.Code, tt.wantError)
			}
		})
	}
}

func TestHTTPServer_ParseErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{
			name:        "empty body",
			body:        "",
			wantMessage: "Parse error: No request body",
		},
		{
			name:        "whitespace body",
			body:        "   \n",
			wantMessage: "Parse error: No request body",
		},
		{
			name: "invalid json",
			body: `{invalid`,
		},
		{
			name: "truncated json",
			body: `{"jsonrpc":"2.0","id":1`,
		},
	}

	server := mcp.NewHTTPServer(newTestDispatcher(t))
	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, testServer.Client(), testServer.URL, tt.body)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("got status %d, want 400", resp.StatusCode)
			}

			msg := decodeMessage(t, resp)
			if msg.Error == nil {
				t.Fatal("expected an error response")
			}
			if msg.Error.Code != -32700 {
				t.Errorf("got code %d, want -32700", msg.Error.Code)
			}
			if !strings.HasPrefix(msg.Error.Message, "Parse error: ") {
				t.Errorf("got message %q, want prefix %q", msg.Error.Message, "Parse error: ")
			}
			if tt.wantMessage != "" && msg.Error.Message != tt.wantMessage {
				t.Errorf("got message %q, want %q", msg.Error.Message, tt.wantMessage)
			}
			if string(msg.ID) != "null" {
				t.Errorf("got id %s, want null", string(msg.ID))
			}
		})
	}
}

func TestStreamServer_Chunked(t *testing.T) {
	server := mcp.NewStreamServer(newTestDispatcher(t))
	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	resp := postJSON(t, testServer.Client(), testServer.URL,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_books_count"}}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	if len(resp.TransferEncoding) != 1 || resp.TransferEncoding[0] != "chunked" {
		t.Errorf("got transfer encoding %v, want chunked", resp.TransferEncoding)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-cache" {
		t.Errorf("got Cache-Control %q, want %q", got, "no-cache")
	}
	if !resp.Close {
		t.Error("connection not marked for close")
	}

	msg := decodeMessage(t, resp)
	if msg.Error != nil {
		t.Fatalf("unexpected error: %v", msg.Error)
	}

	var result mcp.CallToolResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "Current books count: 1" {
		t.Errorf("got content %+v, want books count text", result.Content)
	}
}

func TestStreamServer_ParseErrorOnStream(t *testing.T) {
	server := mcp.NewStreamServer(newTestDispatcher(t))
	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	resp := postJSON(t, testServer.Client(), testServer.URL, "")
	defer resp.Body.Close()

	// Parse errors travel over the stream itself, not as an HTTP status.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}

	msg := decodeMessage(t, resp)
	if msg.Error == nil {
		t.Fatal("expected an error response")
	}
	if msg.Error.Code != -32700 {
		t.Errorf("got code %d, want -32700", msg.Error.Code)
	}
	if msg.Error.Message != "Parse error: No request body" {
		t.Errorf("got message %q, want %q", msg.Error.Message, "Parse error: No request body")
	}
}

func TestPollServer_Dispatch(t *testing.T) {
	server := mcp.NewPollServer(newTestDispatcher(t))
	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	resp := postJSON(t, testServer.Client(), testServer.URL,
		`{"jsonrpc":"2.0","id":"poll-1","method":"tools/list"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}

	msg := decodeMessage(t, resp)
	if msg.Error != nil {
		t.Fatalf("unexpected error: %v", msg.Error)
	}

	var result mcp.ListToolsResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != "get_books_count" {
		t.Errorf("got tools %+v, want the builtin books tool", result.Tools)
	}
}

func TestPollServer_ParseError(t *testing.T) {
	server := mcp.NewPollServer(newTestDispatcher(t))
	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	resp := postJSON(t, testServer.Client(), testServer.URL, `not json at all`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}

	msg := decodeMessage(t, resp)
	if msg.Error == nil {
		t.Fatal("expected an error response")
	}
	if msg.Error.Code != -32700 {
		t.Errorf("got code %d, want -32700", msg.Error.Code)
	}
}
