package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/gallery/internal/navigation"
	"github.com/kalambet/gallery/internal/profile"
	"github.com/kalambet/gallery/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store := newTestStore(t)
	return MCPDeps{
		Profiles:  profile.NewManager(store),
		Museums:   store,
		Locations: navigation.DefaultRegistry(),
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_GetProfile(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedAccount(t, store, "u1", "y_ta")
	handler := mcpGetProfile(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{
		"username": "y_ta",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var doc profile.Document
	if err := json.Unmarshal([]byte(toolText(t, result)), &doc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if doc.Username != "y_ta" || len(doc.Skills) != profile.SkillCount || len(doc.Works) != profile.WorkCount {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Editable || doc.LoginUser != nil {
		t.Fatalf("MCP documents must be anonymous: %+v", doc)
	}
}

func TestMCPTool_GetProfile_NotFound(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpGetProfile(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{
		"username": "ghost",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error result, got: %s", toolText(t, result))
	}
}

func TestMCPTool_GetProfile_MissingArg(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpGetProfile(deps)(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{}))
	if !result.IsError {
		t.Fatal("expected error for missing username")
	}
}

func TestMCPTool_CheckUsername(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedAccount(t, store, "u1", "y_ta")
	handler := mcpCheckUsername(deps)

	tests := []struct {
		username string
		want     string
	}{
		{"y_ta", "is taken"},
		{"fresh_name", "is available"},
		{"ab", "is not available"},
	}
	for _, tt := range tests {
		result, err := handler(context.Background(), makeCallToolRequest("check_username", map[string]interface{}{
			"username": tt.username,
		}))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.username, err)
		}
		if text := toolText(t, result); !strings.Contains(text, tt.want) {
			t.Errorf("%s: got %q, want it to contain %q", tt.username, text, tt.want)
		}
	}
}

func TestMCPTool_ListMuseums(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedAccount(t, store, "u1", "alpha")
	seedAccount(t, store, "u2", "beta")
	seedAccount(t, store, "u3", "")
	handler := mcpListMuseums(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_museums", map[string]interface{}{
		"limit": 10,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var museums []map[string]string
	if err := json.Unmarshal([]byte(toolText(t, result)), &museums); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(museums) != 2 {
		t.Fatalf("expected 2 museums (unclaimed accounts hidden), got %d", len(museums))
	}
}

func TestMCPResource_Locations(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpResourceLocations(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("gallery://locations"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var locs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &locs); err != nil {
		t.Fatalf("failed to parse locations: %v", err)
	}
	want := []string{"home", "skills", "works", "links"}
	if len(locs) != len(want) {
		t.Fatalf("expected %d locations, got %d", len(want), len(locs))
	}
	for i, name := range want {
		if locs[i].Name != name {
			t.Errorf("locs[%d] = %s, want %s", i, locs[i].Name, name)
		}
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedAccount(t, store, "u1", "y_ta")

	getHandler := mcpGetProfile(deps)
	checkHandler := mcpCheckUsername(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := getHandler(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{
				"username": "y_ta",
			})); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := checkHandler(context.Background(), makeCallToolRequest("check_username", map[string]interface{}{
				"username": "someone",
			})); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps, "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
