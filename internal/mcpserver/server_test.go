package mcpserver

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/folio/internal/attachments"
	"github.com/starford/folio/internal/testutil"
	"github.com/starford/folio/internal/workspace"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	root, store := testutil.TestWorkspace(t)
	svc, err := workspace.NewService(store, testutil.TestDB(t), workspace.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)

	return New(svc, attachments.NewStore(root, 1<<20)), root
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"search_documents":      srv.searchDocuments,
		"list_documents":        srv.listDocuments,
		"read_document":         srv.readDocument,
		"create_document":       srv.createDocument,
		"link_text":             srv.linkText,
		"list_links":            srv.listLinks,
		"word_count":            srv.wordCount,
		"find_in_document":      srv.findInDocument,
		"attach_image":          srv.attachImage,
		"get_document_contract": srv.getDocumentContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadDocument(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_document", map[string]any{
		"id":       "test",
		"markdown": "# Test\nHello **there**",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	if text := resultText(r); !strings.HasPrefix(text, "created: test") {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_document", map[string]any{"id": "test"})
	if text := resultText(r); text != "## Test\nHello there\n" {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "create_document", map[string]any{"id": "test"})
	if !r.IsError {
		t.Error("expected error for duplicate document")
	}
}

func TestReadDocumentMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_document", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
	r = callTool(t, srv, "read_document", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestListDocuments(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_document", map[string]any{"id": "b", "markdown": "two #pets"})
	callTool(t, srv, "create_document", map[string]any{"id": "a", "markdown": "one"})

	if text := resultText(callTool(t, srv, "list_documents", map[string]any{})); text != "a\nb" {
		t.Errorf("list = %q, want a and b", text)
	}
	if text := resultText(callTool(t, srv, "list_documents", map[string]any{"tag": "pets"})); text != "b" {
		t.Errorf("tag list = %q, want b", text)
	}
}

func TestLinkText(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_document", map[string]any{"id": "src", "markdown": "Ünïcode quick brown fox"})
	callTool(t, srv, "create_document", map[string]any{"id": "animals"})

	r := callTool(t, srv, "link_text", map[string]any{"id": "src", "text": "quick brown", "tag": "animals"})
	if r.IsError {
		t.Fatalf("link failed: %s", resultText(r))
	}

	r = callTool(t, srv, "read_document", map[string]any{"id": "animals"})
	if text := resultText(r); text != "> quick brown\n" {
		t.Errorf("tag page = %q", text)
	}

	r = callTool(t, srv, "list_links", map[string]any{"id": "src"})
	if text := resultText(r); !strings.Contains(text, `"content": "quick brown"`) {
		t.Errorf("links = %s", text)
	}
	if text := resultText(callTool(t, srv, "list_links", map[string]any{})); text != "animals" {
		t.Errorf("tags = %q", text)
	}

	r = callTool(t, srv, "link_text", map[string]any{"id": "src", "text": "zebra", "tag": "animals"})
	if !r.IsError {
		t.Error("expected error for missing text")
	}
}

func TestWordCountAndFind(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_document", map[string]any{"id": "doc", "markdown": "cat and Cat\ncatalog"})

	if text := resultText(callTool(t, srv, "word_count", map[string]any{"id": "doc"})); text != "4" {
		t.Errorf("word count = %q, want 4", text)
	}
	r := callTool(t, srv, "find_in_document", map[string]any{"id": "doc", "term": "cat"})
	if text := resultText(r); !strings.Contains(text, `"count": 3`) {
		t.Errorf("find = %s", text)
	}
}

func TestSearchDocuments(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_document", map[string]any{"id": "zebra", "markdown": "striped animals"})

	r := callTool(t, srv, "search_documents", map[string]any{"query": "striped"})
	if text := resultText(r); !strings.Contains(text, `"zebra"`) {
		t.Errorf("search = %s", text)
	}
}

func TestAttachImageDataURI(t *testing.T) {
	srv, root := testServer(t)
	callTool(t, srv, "create_document", map[string]any{"id": "doc", "markdown": "one\ntwo"})

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	r := callTool(t, srv, "attach_image", map[string]any{"id": "doc", "url": uri, "caption": "pic"})
	if r.IsError {
		t.Fatalf("attach failed: %s", resultText(r))
	}
	entries, err := os.ReadDir(filepath.Join(root, attachments.DirName))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one stored attachment, got %v (%v)", entries, err)
	}

	r = callTool(t, srv, "attach_image", map[string]any{"id": "doc", "url": uri, "block": 9})
	if !r.IsError {
		t.Error("expected error for block out of range")
	}
	r = callTool(t, srv, "attach_image", map[string]any{"id": "doc", "url": "file:///etc/passwd"})
	if !r.IsError {
		t.Error("expected error for file scheme")
	}
	r = callTool(t, srv, "attach_image", map[string]any{"id": "doc", "url": "http://127.0.0.1/x.png"})
	if !r.IsError {
		t.Error("expected error for loopback host")
	}
}

func TestDecodeDataURI(t *testing.T) {
	if _, _, err := decodeDataURI("data:image/png,plain"); err == nil {
		t.Error("expected error for non-base64 data URI")
	}
	if _, _, err := decodeDataURI("data:application/pdf;base64,AAAA"); err == nil {
		t.Error("expected error for unsupported MIME type")
	}
	data, ext, err := decodeDataURI("data:image/gif;base64," + base64.StdEncoding.EncodeToString([]byte("GIF89a")))
	if err != nil || ext != ".gif" || string(data) != "GIF89a" {
		t.Errorf("decode = %q, %q, %v", data, ext, err)
	}
}

func TestContract(t *testing.T) {
	srv, _ := testServer(t)
	if text := resultText(callTool(t, srv, "get_document_contract", nil)); text != DocumentFormatContract {
		t.Error("contract tool does not return the format contract")
	}
	contents, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}
