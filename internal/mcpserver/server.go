// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Folio tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/attachments"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/linksync"
	"github.com/starford/folio/internal/workspace"
)

const formatURI = "folio://document-format"

// Server wraps the MCP server with Folio tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *workspace.Service
	files *attachments.Store
}

// New creates a new MCP server with all Folio tools registered.
func New(svc *workspace.Service, files *attachments.Store) *Server {
	s := &Server{svc: svc, files: files}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document titles and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents, optionally only those carrying a tag."),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a document as plain text, one line per block, followed by its links."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id (e.g. topics/plan)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a document from Markdown. "+
			"The Markdown MUST follow the Folio import format. Read it first via "+
			"the get_document_contract tool or the "+formatURI+" resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the new document")),
		mcp.WithString("markdown", mcp.Description("Markdown body following the Folio import format")),
		mcp.WithString("title", mcp.Description("Optional title; defaults to the first heading")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("link_text",
		mcp.WithDescription("Tag the first occurrence of text in a document. "+
			"The tagged text is copied into the document named after the tag and kept in sync."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Source document id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to tag; must lie within one block")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag, which is also the id of the tag page")),
	), s.linkText)

	s.mcp.AddTool(mcp.NewTool("list_links",
		mcp.WithDescription("List the links sourced in a document, or every tag when no id is given."),
		mcp.WithString("id", mcp.Description("Optional document id")),
	), s.listLinks)

	s.mcp.AddTool(mcp.NewTool("word_count",
		mcp.WithDescription("Return the word count of a document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.wordCount)

	s.mcp.AddTool(mcp.NewTool("find_in_document",
		mcp.WithDescription("Find case-insensitive matches of a term in a document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("term", mcp.Required(), mcp.Description("Search term")),
	), s.findInDocument)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Download an image (http/https URL or base64 data URI) and attach it to a block."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data:image/...;base64,... URI")),
		mcp.WithNumber("block", mcp.Description("Zero-based block index; defaults to the last block")),
		mcp.WithString("caption", mcp.Description("Optional caption")),
	), s.attachImage)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the Folio Markdown import format. "+
			"Call this before creating documents to ensure correct structure."),
	), s.getDocumentContract)

	// Resource: document import format.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Document Format Contract",
			mcp.WithResourceDescription("Markdown format accepted when creating documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.ListDocuments(ctx, workspace.ListQuery{Tag: req.GetString("tag", ""), Sort: "id"})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.OpenDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(renderText(v)), nil
}

// renderText prints a document as text. Section titles get a "## " prefix and
// link copies a "> " prefix.
func renderText(v *workspace.DocumentView) string {
	var b strings.Builder
	for i := range v.Content.Len() {
		blk := v.Content.BlockAt(i)
		switch blk.Type() {
		case docmodel.WikiSection:
			b.WriteString("## ")
		case docmodel.LinkDestination:
			b.WriteString("> ")
		}
		b.WriteString(blk.Text())
		b.WriteByte('\n')
	}
	if len(v.Links) > 0 {
		b.WriteString("\nLinks:\n")
		for _, l := range v.Links {
			fmt.Fprintf(&b, "- #%d [%s] %q\n", l.ID, l.Tag, l.Content)
		}
	}
	return b.String()
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.CreateDocument(ctx, workspace.CreateRequest{
		ID:       id,
		Title:    req.GetString("title", ""),
		Markdown: req.GetString("markdown", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%d words, %d links)", v.ID, v.Words, len(v.Links))), nil
}

func (s *Server) linkText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	v, err := s.svc.OpenDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open %s: %v", id, err)), nil
	}
	sel, ok := locate(v.Content, text)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("text not found in %s: %q", id, text)), nil
	}
	res, err := s.svc.CreateLink(ctx, id, workspace.LinkRequest{Selection: sel, Tag: tag})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("linked #%d to %s", res.LinkID, tag)), nil
}

// locate returns a selection over the first occurrence of text inside a
// single block.
func locate(c *docmodel.Content, text string) (docmodel.Selection, bool) {
	if text == "" {
		return docmodel.Selection{}, false
	}
	for i := range c.Len() {
		blk := c.BlockAt(i)
		at := strings.Index(blk.Text(), text)
		if at < 0 {
			continue
		}
		start := utf8.RuneCountInString(blk.Text()[:at])
		return docmodel.Span(blk.Key(), start, blk.Key(), start+utf8.RuneCountInString(text)), true
	}
	return docmodel.Selection{}, false
}

type linkInfo struct {
	ID      linksync.LinkID `json:"id"`
	Tag     string          `json:"tag"`
	Content string          `json:"content"`
	Alias   string          `json:"alias,omitempty"`
}

func (s *Server) listLinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg := s.svc.Registry()
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultText(strings.Join(reg.Tags(), "\n")), nil
	}
	out := []linkInfo{}
	for _, lid := range reg.LinkIDs() {
		tag, ok := reg.DocLinks(id)[lid]
		if !ok {
			continue
		}
		l, _ := reg.Link(lid)
		out = append(out, linkInfo{ID: lid, Tag: tag, Content: l.Content, Alias: l.Alias})
	}
	return jsonResult(out), nil
}

func (s *Server) wordCount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	wc, err := s.svc.WordCount(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d", wc.Total)), nil
}

func (s *Server) findInDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	term, err := req.RequireString("term")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fv, err := s.svc.Find(ctx, id, term)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(fv), nil
}

func (s *Server) getDocumentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
