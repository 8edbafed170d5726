// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Asterisk commands as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/asterisk/internal/dispatch"
	"github.com/starford/asterisk/internal/models"
)

const protocolURI = "asterisk://protocol"

// Server wraps the MCP server with Asterisk tools.
type Server struct {
	mcp *server.MCPServer
	d   *dispatch.Dispatcher
}

// New creates a new MCP server with all Asterisk tools registered.
func New(d *dispatch.Dispatcher) *Server {
	s := &Server{d: d}

	s.mcp = server.NewMCPServer(
		"Asterisk",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_all_tags",
		mcp.WithDescription("Tag frequencies across annotations on the current page, most used first."),
	), s.getAllTags)

	s.mcp.AddTool(mcp.NewTool("get_all_elements",
		mcp.WithDescription("All annotated elements on the current page that still exist in the document."),
	), s.getAllElements)

	s.mcp.AddTool(mcp.NewTool("get_metadata",
		mcp.WithDescription("Metadata of the selected element. An unsaved draft takes precedence over the saved note."),
	), s.getMetadata)

	s.mcp.AddTool(mcp.NewTool("edit_element",
		mcp.WithDescription("Load the saved note of an element on the current page."),
		mcp.WithString("nodeId", mcp.Required(), mcp.Description("Element id, e.g. 1:23")),
		mcp.WithBoolean("selectNode", mcp.Description("Also select the element")),
	), s.editElement)

	s.mcp.AddTool(mcp.NewTool("save_metadata",
		mcp.WithDescription("Save a note for the selected element, or for nodeId when given. "+
			"Replaces any existing note and discards the draft."),
		mcp.WithString("nodeId", mcp.Description("Element to select before saving")),
		mcp.WithString("sourceUrl", mcp.Description("Link to the source of the element")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags, matched case-sensitively")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
	), s.saveMetadata)

	s.mcp.AddTool(mcp.NewTool("delete_annotation",
		mcp.WithDescription("Delete the note and draft of an element on the current page."),
		mcp.WithString("nodeId", mcp.Required(), mcp.Description("Element id")),
	), s.deleteAnnotation)

	s.mcp.AddTool(mcp.NewTool("navigate_to_node",
		mcp.WithDescription("Select an element and scroll it into view."),
		mcp.WithString("nodeId", mcp.Required(), mcp.Description("Element id")),
	), s.navigateToNode)

	s.mcp.AddTool(mcp.NewTool("send_command",
		mcp.WithDescription("Send a raw command envelope. Read "+protocolURI+" for the command list."),
		mcp.WithString("command", mcp.Required(), mcp.Description(`JSON object, e.g. {"type":"get-all-tags"}`)),
	), s.sendCommand)

	// Resource: command protocol.
	s.mcp.AddResource(
		mcp.NewResource(protocolURI, "Command Protocol",
			mcp.WithResourceDescription("Inbound commands, their replies and push events."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readProtocolResource,
	)

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

func (s *Server) getAllTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.run(ctx, dispatch.GetAllTags{})
}

func (s *Server) getAllElements(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.run(ctx, dispatch.GetAllElements{})
}

func (s *Server) getMetadata(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.run(ctx, dispatch.GetMetadata{})
}

func (s *Server) editElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("nodeId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.run(ctx, dispatch.EditElement{NodeID: nodeID, SelectNode: req.GetBool("selectNode", false)})
}

func (s *Server) saveMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if nodeID := req.GetString("nodeId", ""); nodeID != "" {
		replies := s.d.Handle(ctx, dispatch.EditElement{NodeID: nodeID, SelectNode: true})
		if len(replies) > 0 && replies[0].Type == dispatch.TypeElementNotFound {
			return result(replies, true)
		}
	}
	return s.run(ctx, dispatch.SaveMetadata{Fields: models.Fields{
		SourceURL: req.GetString("sourceUrl", ""),
		Tags:      req.GetStringSlice("tags", []string{}),
		Notes:     req.GetString("notes", ""),
	}})
}

func (s *Server) deleteAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("nodeId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.run(ctx, dispatch.DeleteAsterisk{NodeID: nodeID})
}

func (s *Server) navigateToNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("nodeId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.run(ctx, dispatch.NavigateToNode{NodeID: nodeID})
}

func (s *Server) sendCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	replies := s.d.HandleRaw(ctx, []byte(raw))
	return result(replies, failed(replies))
}

func (s *Server) readProtocolResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      protocolURI,
			MIMEType: "text/markdown",
			Text:     Protocol,
		},
	}, nil
}

func (s *Server) run(ctx context.Context, cmd dispatch.Command) (*mcp.CallToolResult, error) {
	if err := cmd.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	replies := s.d.Handle(ctx, cmd)
	return result(replies, failed(replies))
}

// failed reports replies that mean the tool call did not do what was asked.
func failed(replies []dispatch.Message) bool {
	for _, m := range replies {
		switch m.Type {
		case dispatch.TypeError, dispatch.TypeSaveFailed, dispatch.TypeElementNotFound:
			return true
		}
	}
	return false
}

func result(replies []dispatch.Message, isError bool) (*mcp.CallToolResult, error) {
	if replies == nil {
		replies = []dispatch.Message{}
	}
	out, err := json.MarshalIndent(replies, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if isError {
		return mcp.NewToolResultError(string(out)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
