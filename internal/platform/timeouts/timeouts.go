// Package timeouts defines timeout constants shared by registry processes.
package timeouts

import "time"

// GRPCDial caps the wait for a registry endpoint to become healthy.
const GRPCDial = 2 * time.Second

// GRPCRequest caps a single CLI request to the registry.
const GRPCRequest = 5 * time.Second

// ReadHeader limits how long the MCP HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits graceful shutdown of servers.
const Shutdown = 5 * time.Second

// ToolCall caps one MCP tool invocation.
const ToolCall = 5 * time.Second
