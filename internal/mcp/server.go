// Package mcp exposes the governance gateway over the Model Context
// Protocol, so agent frameworks that speak MCP get the full pipeline —
// gates, ledger, approvals — without linking the Go SDK.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tillerhq/tiller/internal/approval"
	"github.com/tillerhq/tiller/internal/audit"
	"github.com/tillerhq/tiller/internal/config"
	"github.com/tillerhq/tiller/internal/gateway"
)

// Config holds MCP server configuration.
type Config struct {
	ConfigPath  string // governance config; empty uses the default path
	TrailPath   string // decision trail JSONL; empty disables the trail
	ApprovalDir string // approval store; empty uses the default dir
}

// Server wraps the MCP SDK server around a governance gateway.
type Server struct {
	mcpServer *mcpsdk.Server
	gw        *gateway.Gateway
	approvals *approval.Store
	trail     *audit.Trail
}

// New creates an MCP server with a freshly wired gateway.
func New(cfg Config) (*Server, error) {
	gcfg, hash, err := config.LoadWithHash(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("mcp: load governance config: %w", err)
	}

	var trail *audit.Trail
	if cfg.TrailPath != "" {
		trail, err = audit.Open(cfg.TrailPath)
		if err != nil {
			return nil, fmt.Errorf("mcp: open decision trail: %w", err)
		}
	}

	dir := cfg.ApprovalDir
	if dir == "" {
		dir = approval.DefaultDir()
	}
	approvals, err := approval.NewStore(dir)
	if err != nil {
		if trail != nil {
			trail.Close()
		}
		return nil, fmt.Errorf("mcp: create approval store: %w", err)
	}

	gw := gateway.New(gcfg, hash, gateway.Options{Trail: trail})
	s := NewWithGateway(gw, approvals)
	s.trail = trail
	return s, nil
}

// NewWithGateway wraps an existing gateway. The caller keeps ownership of
// the gateway's collaborators.
func NewWithGateway(gw *gateway.Gateway, approvals *approval.Store) *Server {
	s := &Server{gw: gw, approvals: approvals}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "tiller",
			Version: "0.1.0",
		},
		nil,
	)
	s.registerTools()
	return s
}

// Gateway returns the underlying gateway.
func (s *Server) Gateway() *gateway.Gateway { return s.gw }

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close closes the decision trail if this server opened one.
func (s *Server) Close() error {
	if s.trail != nil {
		return s.trail.Close()
	}
	return nil
}

// registerTools adds the governance tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "tiller_check",
		Description: "Run the governance pipeline for a proposed action without executing anything. Returns the decision, reasons, and policy hash.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "tiller_approve",
		Description: "Grant a pending approval request. Use the charge id a held decision reported.",
	}, s.handleApprove)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "tiller_deny",
		Description: "Deny a pending approval request.",
	}, s.handleDeny)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "tiller_pending",
		Description: "List approval requests and their states.",
	}, s.handlePending)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "tiller_ledger",
		Description: "Read an identity's execution ledger ordered by logical clock.",
	}, s.handleLedger)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "tiller_budget",
		Description: "Report an identity's budget usage against the configured limits.",
	}, s.handleBudget)
}
