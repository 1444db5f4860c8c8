// Package mcp provides an MCP (Model Context Protocol) server adapter for dossier.
// It lets AI assistants search ingested client material and queue new sources.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrMissingOwner is returned when no owner is configured for the server.
var ErrMissingOwner = errors.New("mcp: owner id is required")
