// Package tools exposes the claim engine as MCP tools.
package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/georgepadayatti/zkpdf/claim"
	"github.com/georgepadayatti/zkpdf/commitment"
	"github.com/georgepadayatti/zkpdf/config"
	"github.com/georgepadayatti/zkpdf/pdf/text"
)

// Tool names.
const (
	ToolExtractText     = "extract_text"
	ToolVerifySignature = "verify_signature"
	ToolVerifyText      = "verify_text"
	ToolBuildCommitment = "build_commitment"
)

var errNoInput = errors.New("either path or pdf_base64 is required")

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	version := cfg.Server.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		config: cfg,
		logger: logger,
		mcpServer: server.NewMCPServer(
			cfg.Server.Name,
			version,
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Serve answers requests read from in until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("serving tools on stdio", slog.String("name", s.config.Server.Name))
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

func documentOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("path",
			mcp.Description("Path to the PDF file"),
		),
		mcp.WithString("pdf_base64",
			mcp.Description("PDF file contents, base64 encoded"),
		),
	}
}

func claimOptions() []mcp.ToolOption {
	return append(documentOptions(),
		mcp.WithNumber("page",
			mcp.Required(),
			mcp.Description("Zero-based page index"),
		),
		mcp.WithString("substring",
			mcp.Required(),
			mcp.Description("Text that must occur on the page"),
		),
		mcp.WithNumber("offset",
			mcp.Required(),
			mcp.Description("Byte offset of the substring in the page text"),
		),
	)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(ToolExtractText,
		append(documentOptions(),
			mcp.WithDescription("Extract the text of every page of a PDF file"),
		)...,
	), s.handleExtractText)

	s.mcpServer.AddTool(mcp.NewTool(ToolVerifySignature,
		append(documentOptions(),
			mcp.WithDescription("Verify the most recent digital signature of a PDF file"),
		)...,
	), s.handleVerifySignature)

	s.mcpServer.AddTool(mcp.NewTool(ToolVerifyText,
		append(claimOptions(),
			mcp.WithDescription("Verify the signature of a PDF file and check that a substring occurs at a byte offset of a page"),
		)...,
	), s.handleVerifyText)

	s.mcpServer.AddTool(mcp.NewTool(ToolBuildCommitment,
		append(claimOptions(),
			mcp.WithDescription("Verify a text claim and derive its public commitment"),
		)...,
	), s.handleBuildCommitment)
}

// Handler functions

func (s *Server) handleExtractText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := s.session(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := session.ExtractAll()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.jsonResult(ExtractResult{Pages: text.Texts(pages), Warnings: session.Warnings()})
}

func (s *Server) handleVerifySignature(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := s.session(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := session.VerifySignature()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.jsonResult(res)
}

func (s *Server) handleVerifyText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.verifyClaim(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.jsonResult(res)
}

// ExtractResult is the extract_text response.
type ExtractResult struct {
	Pages    []string `json:"pages"`
	Warnings []string `json:"warnings,omitempty"`
}

// CommitmentResult is the build_commitment response.
type CommitmentResult struct {
	Commitment commitment.PublicCommitment `json:"commitment"`
	ABI        string                      `json:"abi"`
}

func (s *Server) handleBuildCommitment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.verifyClaim(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := commitment.Build(res)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.jsonResult(CommitmentResult{
		Commitment: c,
		ABI:        fmt.Sprintf("0x%x", c.ABIEncode()),
	})
}

func (s *Server) verifyClaim(request mcp.CallToolRequest) (*claim.ClaimResult, error) {
	page, err := request.RequireInt("page")
	if err != nil {
		return nil, err
	}
	substring, err := request.RequireString("substring")
	if err != nil {
		return nil, err
	}
	offset, err := request.RequireInt("offset")
	if err != nil {
		return nil, err
	}
	session, err := s.session(request)
	if err != nil {
		return nil, err
	}
	return session.VerifyClaim(page, substring, offset)
}

func (s *Server) session(request mcp.CallToolRequest) (*claim.Session, error) {
	data, err := loadDocument(request)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("tool call",
		slog.String("tool", request.Params.Name),
		slog.Int("size", len(data)))
	return claim.NewSession(data,
		claim.WithLimits(s.config.Limits),
		claim.WithLogger(s.logger)), nil
}

func loadDocument(request mcp.CallToolRequest) ([]byte, error) {
	if encoded := request.GetString("pdf_base64", ""); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid pdf_base64: %w", err)
		}
		return data, nil
	}
	path := request.GetString("path", "")
	if path == "" {
		return nil, errNoInput
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (s *Server) jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
