// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the file registry operations as tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/softmill/filedex/internal/recordservice"
)

// Server wraps the MCP server with filedex tools.
type Server struct {
	mcp *server.MCPServer
	svc *recordservice.Service
}

// New creates an MCP server with all filedex tools registered.
func New(svc *recordservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"filedex",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List tracked files, most recently created first."),
		mcp.WithString("category", mcp.Description("Optional category filter (case-insensitive)")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the live on-disk content of a tracked file."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Record id, id prefix, or file name")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create a new file on disk and register it. "+
			"The file name must include an extension (e.g. notes.txt)."),
		mcp.WithString("file_name", mcp.Required(), mcp.Description("Name including extension")),
		mcp.WithString("content", mcp.Description("Initial text content")),
		mcp.WithString("storage_path", mcp.Required(), mcp.Description("Directory to store the file in")),
		mcp.WithString("category", mcp.Description("Category tag; blank means General")),
	), s.createFile)

	s.mcp.AddTool(mcp.NewTool("update_content",
		mcp.WithDescription("Overwrite the content of a tracked file on disk and in the registry."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Record id, id prefix, or file name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New text content")),
	), s.updateContent)

	s.mcp.AddTool(mcp.NewTool("set_category",
		mcp.WithDescription("Change the category tag of a tracked file."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Record id, id prefix, or file name")),
		mcp.WithString("category", mcp.Required(), mcp.Description("New category tag")),
	), s.setCategory)

	s.mcp.AddTool(mcp.NewTool("delete_file",
		mcp.WithDescription("Delete a tracked file from disk and remove its record."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Record id, id prefix, or file name")),
	), s.deleteFile)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := ""
	if c, err := req.RequireString("category"); err == nil {
		category = c
	}

	recs := s.svc.List(ctx)
	if category != "" {
		recs = s.svc.ListByCategory(ctx, category)
	}

	type item struct {
		ID       string `json:"id"`
		FileName string `json:"file_name"`
		Path     string `json:"path"`
		Category string `json:"category"`
	}
	items := make([]item, len(recs))
	for i, rec := range recs {
		items[i] = item{ID: rec.ShortID(), FileName: rec.FileName, Path: rec.Path(), Category: rec.Category}
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Resolve(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.svc.ReadDisk(ctx, rec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) createFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName, err := req.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	storagePath, err := req.RequireString("storage_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := ""
	if c, cErr := req.RequireString("content"); cErr == nil {
		content = c
	}
	category := ""
	if c, cErr := req.RequireString("category"); cErr == nil {
		category = c
	}

	rec, err := s.svc.Create(ctx, fileName, content, storagePath, category)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created %s: %s", rec.ShortID(), rec.Path())), nil
}

func (s *Server) updateContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.UpdateContent(ctx, ref, content, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated %s: %s", rec.ShortID(), rec.Path())), nil
}

func (s *Server) setCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Recategorize(ctx, ref, category)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("category of %s is now %s", rec.ShortID(), rec.Category)), nil
}

func (s *Server) deleteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, ref); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", ref)), nil
}
