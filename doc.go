// Package mcp implements the Talebook MCP server, a JSON-RPC 2.0 tool
// invocation router speaking the Model Context Protocol (MCP) over several
// interchangeable transports. This implementation follows the protocol
// revision 2024-11-05 from https://spec.modelcontextprotocol.io/specification/.
//
// One dispatcher serves every transport, so Server-Sent Events, WebSocket,
// plain HTTP, chunked streaming, long polling, and stdio clients all observe
// identical protocol behavior, and tools registered once become callable
// everywhere at once.
package mcp
