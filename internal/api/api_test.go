package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/starford/folio/internal/attachments"
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/testutil"
	"github.com/starford/folio/internal/workspace"
)

// testEnv sets up a temp workspace, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*workspace.Service, http.Handler, string) {
	t.Helper()

	root, store := testutil.TestWorkspace(t)
	db := testutil.TestDB(t)

	svc, err := workspace.NewService(store, db, workspace.Options{
		CountDelay:      5 * time.Millisecond,
		ReplaceAllDelay: 5 * time.Millisecond,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)

	router := NewRouter(svc, RouterOptions{
		AuthEnabled:    authToken != "",
		Token:          authToken,
		Root:           root,
		MaxUploadBytes: 1 << 20,
	})
	return svc, router, root
}

func do(t *testing.T, router http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func createDoc(t *testing.T, router http.Handler, id, markdown string) DocumentView {
	t.Helper()
	w := do(t, router, http.MethodPost, "/documents", CreateDocumentRequest{ID: id, Markdown: markdown})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s status = %d, body = %s", id, w.Code, w.Body.String())
	}
	return decode[DocumentView](t, w)
}

func firstLine(v DocumentView) string {
	return v.Content.BlockAt(0).Text()
}

func TestCreateAndGetDocument(t *testing.T) {
	_, router, _ := testEnv(t, "")

	created := createDoc(t, router, "hello", "# Hello\nWorld")
	if created.Title != "Hello" {
		t.Errorf("title = %q, want Hello", created.Title)
	}

	w := do(t, router, http.MethodGet, "/documents/hello", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := w.Header().Get("ETag"); got != `"`+created.Checksum+`"` {
		t.Errorf("ETag = %q, want checksum %q", got, created.Checksum)
	}
	v := decode[DocumentView](t, w)
	if v.Content.Len() != 2 || v.Content.BlockAt(1).Text() != "World" {
		t.Errorf("unexpected content: %+v", v.Content.Raw())
	}

	// Duplicate create conflicts.
	w = do(t, router, http.MethodPost, "/documents", CreateDocumentRequest{ID: "hello"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", w.Code)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	_, router, _ := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/documents/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestInvalidDocumentID(t *testing.T) {
	_, router, _ := testEnv(t, "")
	for _, id := range []string{"../escape", ".hidden", ""} {
		w := do(t, router, http.MethodPost, "/documents", CreateDocumentRequest{ID: id})
		if w.Code != http.StatusBadRequest {
			t.Errorf("create %q status = %d, want 400", id, w.Code)
		}
	}
}

func TestNestedDocumentID(t *testing.T) {
	_, router, _ := testEnv(t, "")
	createDoc(t, router, "topics/plan", "draft")

	w := do(t, router, http.MethodGet, "/documents/topics%2Fplan", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	if v := decode[DocumentView](t, w); v.ID != "topics/plan" {
		t.Errorf("id = %q, want topics/plan", v.ID)
	}
}

func TestListDocuments(t *testing.T) {
	_, router, _ := testEnv(t, "")
	createDoc(t, router, "a", "first #pets")
	createDoc(t, router, "b", "second")

	w := do(t, router, http.MethodGet, "/documents?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if resp := decode[DocumentListResponse](t, w); resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}

	w = do(t, router, http.MethodGet, "/documents?tag=pets", nil)
	resp := decode[DocumentListResponse](t, w)
	if resp.Total != 1 || resp.Documents[0].ID != "a" {
		t.Errorf("tag filter = %+v", resp)
	}
}

func TestApplyEdit(t *testing.T) {
	_, router, _ := testEnv(t, "")
	v := createDoc(t, router, "doc", "hello world")
	key := v.Content.KeyAt(0)

	w := do(t, router, http.MethodPost, "/documents/doc/edits", workspace.Edit{
		Kind:      workspace.EditInsertText,
		Selection: docmodel.Collapsed(key, 5),
		Text:      " big",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[DocumentView](t, w)
	if firstLine(got) != "hello big world" {
		t.Errorf("text = %q", firstLine(got))
	}
	if got.Words != 3 {
		t.Errorf("words = %d, want 3", got.Words)
	}

	w = do(t, router, http.MethodPost, "/documents/doc/edits", workspace.Edit{Kind: "teleport"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", w.Code)
	}
}

func TestApplyEditStaleSelection(t *testing.T) {
	_, router, _ := testEnv(t, "")
	createDoc(t, router, "doc", "short")

	w := do(t, router, http.MethodPost, "/documents/doc/edits", workspace.Edit{
		Kind:      workspace.EditInsertText,
		Selection: docmodel.Collapsed("nope", 0),
		Text:      "x",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422, body = %s", w.Code, w.Body.String())
	}
}

func TestApplyEditIfMatch(t *testing.T) {
	_, router, _ := testEnv(t, "")
	v := createDoc(t, router, "doc", "text")
	key := v.Content.KeyAt(0)
	edit := workspace.Edit{Kind: workspace.EditInsertText, Selection: docmodel.Collapsed(key, 4), Text: "!"}

	w := do(t, router, http.MethodPost, "/documents/doc/edits", edit, "If-Match", `"stale"`)
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match status = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPost, "/documents/doc/edits", edit, "If-Match", `"`+v.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Errorf("matching If-Match status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestLinksAndRegistry(t *testing.T) {
	_, router, _ := testEnv(t, "")
	v := createDoc(t, router, "src", "The quick brown fox")
	createDoc(t, router, "animals", "")
	key := v.Content.KeyAt(0)

	w := do(t, router, http.MethodPost, "/documents/src/links", workspace.LinkRequest{
		Selection: docmodel.Span(key, 4, key, 15),
		Tag:       "animals",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("link status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[workspace.LinkResult](t, w)
	if len(res.Document.Links) != 1 || res.Document.Links[0].Content != "quick brown" {
		t.Errorf("links = %+v", res.Document.Links)
	}

	w = do(t, router, http.MethodGet, "/documents/animals", nil)
	if got := firstLine(decode[DocumentView](t, w)); got != "quick brown" {
		t.Errorf("tag page = %q, want quick brown", got)
	}

	w = do(t, router, http.MethodGet, "/registry", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("registry status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("quick brown")) {
		t.Errorf("registry missing link content: %s", w.Body.String())
	}

	// Unlinking the whole range removes the copy.
	w = do(t, router, http.MethodDelete, "/documents/src/links", SelectionRequest{Selection: docmodel.Span(key, 4, key, 15)})
	if w.Code != http.StatusOK {
		t.Fatalf("unlink status = %d, body = %s", w.Code, w.Body.String())
	}
	if rm := decode[workspace.RemoveLinksResult](t, w); len(rm.Deleted) != 1 {
		t.Errorf("deleted = %v, want one link", rm.Deleted)
	}
	w = do(t, router, http.MethodGet, "/documents/animals", nil)
	if got := decode[DocumentView](t, w); got.Content.Len() != 1 || firstLine(got) != "" {
		t.Errorf("tag page after unlink = %+v", got.Content.Raw())
	}
}

func TestCreateLinkEmptySelection(t *testing.T) {
	_, router, _ := testEnv(t, "")
	v := createDoc(t, router, "src", "text")
	w := do(t, router, http.MethodPost, "/documents/src/links", workspace.LinkRequest{
		Selection: docmodel.Collapsed(v.Content.KeyAt(0), 2),
		Tag:       "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDeleteTagRequiresDoc(t *testing.T) {
	_, router, _ := testEnv(t, "")
	w := do(t, router, http.MethodDelete, "/tags/animals", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDeleteTag(t *testing.T) {
	svc, router, _ := testEnv(t, "")
	v := createDoc(t, router, "src", "The quick brown fox")
	createDoc(t, router, "animals", "")
	key := v.Content.KeyAt(0)
	do(t, router, http.MethodPost, "/documents/src/links", workspace.LinkRequest{
		Selection: docmodel.Span(key, 4, key, 9),
		Tag:       "animals",
	})

	w := do(t, router, http.MethodDelete, "/tags/animals?doc=src", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete tag status = %d, body = %s", w.Code, w.Body.String())
	}
	if tags := svc.Registry().DocTags("src"); len(tags) != 0 {
		t.Errorf("tags after delete = %v", tags)
	}
}

func TestSectionsFindAndReplace(t *testing.T) {
	_, router, _ := testEnv(t, "")
	v := createDoc(t, router, "doc", "cat and cat")
	key := v.Content.KeyAt(0)

	w := do(t, router, http.MethodPost, "/documents/doc/sections", SectionRequest{
		Selection: docmodel.Collapsed(key, 11),
		Title:     "More",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("section status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[DocumentView](t, w); got.Content.Len() < 2 {
		t.Errorf("expected a new section block, got %+v", got.Content.Raw())
	}

	w = do(t, router, http.MethodGet, "/documents/doc/find?q=cat", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("find status = %d", w.Code)
	}
	if fv := decode[workspace.FindView](t, w); fv.Count != 2 {
		t.Errorf("count = %d, want 2", fv.Count)
	}

	w = do(t, router, http.MethodPost, "/documents/doc/find/next", nil)
	if fv := decode[workspace.FindView](t, w); fv.Current == nil {
		t.Errorf("expected a current match after next, got %+v", fv)
	}

	w = do(t, router, http.MethodPost, "/documents/doc/replace", ReplaceRequest{Replacement: "dog", All: true})
	if w.Code != http.StatusOK {
		t.Fatalf("replace status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[workspace.ReplaceResult](t, w)
	if res.Replaced != 2 || firstLine(*res.Document) != "dog and dog" {
		t.Errorf("replace = %d, text = %q", res.Replaced, firstLine(*res.Document))
	}

	w = do(t, router, http.MethodGet, "/documents/doc/wordcount", nil)
	// "dog and dog" plus the "More" title.
	if wc := decode[workspace.WordCountView](t, w); wc.Total != 4 || wc.Total != res.Document.Words {
		t.Errorf("word count = %d, want 4 (document reports %d)", wc.Total, res.Document.Words)
	}
}

func TestSearch(t *testing.T) {
	_, router, _ := testEnv(t, "")
	createDoc(t, router, "zebra", "striped animals of Africa")

	w := do(t, router, http.MethodGet, "/search?q=striped", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	if resp := decode[SearchResponse](t, w); len(resp.Results) != 1 || resp.Results[0].ID != "zebra" {
		t.Errorf("results = %+v", resp.Results)
	}

	w = do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty search status = %d, want 400", w.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	_, router, root := testEnv(t, "")
	createDoc(t, router, "gone", "bye")

	w := do(t, router, http.MethodDelete, "/documents/gone", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(root, ".trash", "gone.json")); err != nil {
		t.Errorf("expected trashed file: %v", err)
	}
	w = do(t, router, http.MethodGet, "/documents/gone", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestAuth(t *testing.T) {
	_, router, _ := testEnv(t, "secret")

	w := do(t, router, http.MethodGet, "/documents", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}
	w = do(t, router, http.MethodGet, "/documents", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}
	w = do(t, router, http.MethodGet, "/documents", nil, "Authorization", "Bearer secret")
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", w.Code)
	}
}

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func uploadImage(t *testing.T, router http.Handler, doc, key string, offset int, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.WriteField("anchorKey", key)
	mw.WriteField("offset", strconv.Itoa(offset))
	mw.WriteField("caption", "a cat")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents/"+doc+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeImage(t *testing.T) {
	_, router, root := testEnv(t, "")
	v := createDoc(t, router, "doc", "caption here")
	key := v.Content.KeyAt(0)

	w := uploadImage(t, router, "doc", key, 0, "cat.png", pngData)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[AttachmentUploadResponse](t, w)
	if resp.Size != int64(len(pngData)) {
		t.Errorf("size = %d", resp.Size)
	}
	if resp.Image.ImageID != resp.Filename || resp.Image.ImageUseID == "" || resp.Image.Caption != "a cat" {
		t.Errorf("image = %+v", resp.Image)
	}
	if _, err := os.Stat(filepath.Join(root, attachments.DirName, resp.Filename)); err != nil {
		t.Errorf("attachment not stored: %v", err)
	}

	w = do(t, router, http.MethodGet, "/attachments/"+resp.Filename, nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), pngData) {
		t.Errorf("serve status = %d, body = %q", w.Code, w.Body.String())
	}

	// Replace the caption of the stored image.
	updated := resp.Image
	updated.Caption = "two cats"
	w = do(t, router, http.MethodPut, "/documents/doc/images/"+resp.BlockKey, UpdateImageRequest{
		ImageID:    resp.Image.ImageID,
		ImageUseID: resp.Image.ImageUseID,
		Image:      updated,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update image status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPut, "/documents/doc/images/"+resp.BlockKey, UpdateImageRequest{
		ImageID:    "missing.png",
		ImageUseID: "x",
		Image:      updated,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing image status = %d, want 404", w.Code)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	_, router, root := testEnv(t, "")
	v := createDoc(t, router, "doc", "text")

	w := uploadImage(t, router, "doc", v.Content.KeyAt(0), 0, "script.sh", []byte("#!/bin/sh"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad extension status = %d, want 400", w.Code)
	}
	w = uploadImage(t, router, "doc", v.Content.KeyAt(0), 0, "fake.png", []byte("not an image"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("mismatched content status = %d, want 400", w.Code)
	}

	// A stale anchor leaves no file behind.
	w = uploadImage(t, router, "doc", "nope", 0, "cat.png", pngData)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("stale anchor status = %d, want 422, body = %s", w.Code, w.Body.String())
	}
	entries, _ := os.ReadDir(filepath.Join(root, attachments.DirName))
	if len(entries) != 0 {
		t.Errorf("expected no stored attachments, got %d", len(entries))
	}

	w = do(t, router, http.MethodGet, "/attachments/..%2Fsecret", nil)
	if w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
		t.Errorf("traversal status = %d", w.Code)
	}
}

func TestSync(t *testing.T) {
	_, router, _ := testEnv(t, "")
	createDoc(t, router, "src", "words")
	w := do(t, router, http.MethodPost, "/documents/src/sync", nil)
	if w.Code != http.StatusOK {
		t.Errorf("sync status = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPost, "/documents/missing/sync", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing sync status = %d, want 404", w.Code)
	}
}
