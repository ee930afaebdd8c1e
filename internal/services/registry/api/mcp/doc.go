// Package mcp exposes the record registry as Model Context Protocol tools.
//
// Each MCP session is bound to one caller identity when it is created: the
// configured identity on stdio, or the identity header of the first HTTP
// request. Mutating tools refuse sessions without an identity.
package mcp
