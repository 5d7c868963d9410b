package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/gallery/internal/navigation"
	"github.com/kalambet/gallery/internal/profile"
)

// MuseumLister lists profiles with a claimed username, most recently updated first.
type MuseumLister interface {
	ListProfiles(ctx context.Context, limit int) ([]profile.Profile, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Profiles  *profile.Manager
	Museums   MuseumLister
	Locations *navigation.Registry
}

// NewMCPServer creates a read-only MCP server over museums and their rooms.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	if deps.Locations == nil {
		deps.Locations = navigation.DefaultRegistry()
	}
	s := server.NewMCPServer(
		"gallery",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("gallery: read-only access to virtual museum portfolios and their room layout."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Fetch the public museum document for a username."),
			mcp.WithString("username", mcp.Description("Museum owner's username"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("check_username",
			mcp.WithDescription("Report whether a username is well-formed and still free."),
			mcp.WithString("username", mcp.Description("Candidate username"), mcp.Required()),
		),
		mcpCheckUsername(deps),
	)

	s.AddTool(
		mcp.NewTool("list_museums",
			mcp.WithDescription("List museums with a claimed username, most recently updated first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListMuseums(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"gallery://locations",
			"Museum Locations",
			mcp.WithResourceDescription("Named teleport points in registry order with position and yaw"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLocations(deps),
	)

	return s
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username, err := req.RequireString("username")
		if err != nil {
			return mcpError("username is required"), nil
		}
		p, err := deps.Profiles.Get(ctx, username)
		if errors.Is(err, profile.ErrNotFound) {
			return mcpError(fmt.Sprintf("no museum for %q", username)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		b, err := json.Marshal(p.Document(nil))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCheckUsername(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username, err := req.RequireString("username")
		if err != nil {
			return mcpError("username is required"), nil
		}
		if verr := profile.ValidateUsername(username); verr != nil {
			return mcpText(fmt.Sprintf("%s is not available: %v", username, verr)), nil
		}
		ok, err := deps.Profiles.UsernameAvailable(ctx, username)
		if err != nil {
			return mcpError(fmt.Sprintf("check failed: %v", err)), nil
		}
		if !ok {
			return mcpText(fmt.Sprintf("%s is taken", username)), nil
		}
		return mcpText(fmt.Sprintf("%s is available", username)), nil
	}
}

func mcpListMuseums(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		profiles, err := deps.Museums.ListProfiles(ctx, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("listing failed: %v", err)), nil
		}

		type museum struct {
			Username string `json:"username"`
			Name     string `json:"name"`
			Intro    string `json:"intro"`
		}
		out := make([]museum, len(profiles))
		for i, p := range profiles {
			out[i] = museum{Username: p.Username, Name: p.Name, Intro: p.Intro}
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal museums: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceLocations(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Locations.All())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal locations: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
