package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/quill/internal/engine"
	"github.com/starford/quill/internal/testutil"
)

// testEnv sets up a temp notes dir, an engine, and a router.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*engine.Engine, http.Handler) {
	t.Helper()
	e := testutil.TestEngine(t)
	return e, NewRouter(e, authToken != "", authToken, nil)
}

func do(t *testing.T, router http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createNote(t *testing.T, router http.Handler, title, body string) NoteDetail {
	t.Helper()
	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: title, Body: body})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %q status = %d, body = %s", title, w.Code, w.Body.String())
	}
	var note NoteDetail
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatal(err)
	}
	return note
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Project Ideas", "")
	createNote(t, router, "Journal", "today: [[project ideas]] and [[Later]]")

	w := do(t, router, http.MethodGet, "/notes/Project%20Ideas", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag")
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "Project Ideas" {
		t.Errorf("title = %q", note.Title)
	}
	if len(note.Backlinks) != 1 || note.Backlinks[0] != "Journal" {
		t.Errorf("backlinks = %v", note.Backlinks)
	}

	w = do(t, router, http.MethodGet, "/notes/journal", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if len(note.Links) != 1 || note.Links[0] != "Project Ideas" {
		t.Errorf("links = %v", note.Links)
	}
	if len(note.Unresolved) != 1 || note.Unresolved[0] != "Later" {
		t.Errorf("unresolved = %v", note.Unresolved)
	}
}

func TestGetNote_EncodedSlash(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "A/B", "slashed")

	w := do(t, router, http.MethodGet, "/notes/A%2FB", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Dup", "a")

	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "DUP", Body: "b"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateInvalid(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank title = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "bad [[title]]"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bracket title = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, "Lock", "v1")

	w := do(t, router, http.MethodPut, "/notes/Lock", UpdateNoteRequest{Body: "v2"}, "If-Match", `"`+created.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPut, "/notes/Lock", UpdateNoteRequest{Body: "v3"}, "If-Match", created.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "NoLock", "v1")

	w := do(t, router, http.MethodPut, "/notes/nolock", UpdateNoteRequest{Body: "v2"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Body != "v2" {
		t.Errorf("body = %q", note.Body)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Bye", "gone")

	w := do(t, router, http.MethodDelete, "/notes/Bye", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	w = do(t, router, http.MethodGet, "/notes/Bye", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/notes/Bye", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestRenameNote(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Old", "text")
	createNote(t, router, "Ref", "[[Old]]")

	w := do(t, router, http.MethodPost, "/notes/Old/rename", RenameNoteRequest{Title: "New"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "New" || note.Body != "text" {
		t.Errorf("renamed = %+v", note)
	}

	w = do(t, router, http.MethodPost, "/notes/New/rename", RenameNoteRequest{Title: "ref"})
	if w.Code != http.StatusConflict {
		t.Errorf("rename onto existing = %d, want 409", w.Code)
	}
}

func TestLinksAndBacklinks(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Hub", "")
	createNote(t, router, "Spoke", "[[hub]] [[Hub]] [[Nowhere]]")

	w := do(t, router, http.MethodGet, "/notes/Spoke/links", nil)
	var links LinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &links)
	if len(links.Links) != 2 {
		t.Errorf("links = %v", links.Links)
	}

	w = do(t, router, http.MethodGet, "/notes/Hub/backlinks", nil)
	var back BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &back)
	if len(back.Backlinks) != 1 || back.Backlinks[0] != "Spoke" {
		t.Errorf("backlinks = %v", back.Backlinks)
	}

	w = do(t, router, http.MethodGet, "/notes/Nowhere/backlinks", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("backlinks of missing = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "b", "")
	createNote(t, router, "A", "")

	w := do(t, router, http.MethodGet, "/notes?order=title", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || resp.Notes[0].Title != "A" {
		t.Errorf("list = %+v", resp)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Find", "uniquetoken here")

	w := do(t, router, http.MethodGet, "/search?q=UNIQUETOKEN", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Title != "Find" {
		t.Errorf("search results = %+v", resp.Results)
	}
}

func TestSearchBlankQuery(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "Any", "text")

	w := do(t, router, http.MethodGet, "/search?q=%20%20", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	results, ok := resp["results"].([]any)
	if !ok || len(results) != 0 {
		t.Errorf("results = %v, want empty list", resp["results"])
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, "a", "links to [[b]]")
	createNote(t, router, "b", "links to [[a]] and [[ghost]]")

	w := do(t, router, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	var resp GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(resp.Nodes))
	}
	if len(resp.Links) != 2 {
		t.Errorf("links = %d, want 2", len(resp.Links))
	}
}

func TestReloadAndStatus(t *testing.T) {
	e, router := testEnv(t, "")
	createNote(t, router, "One", "")
	testutil.WriteNote(t, e.Dir(), "two.md", "external")
	e.MarkDrift("two.md")

	w := do(t, router, http.MethodGet, "/status", nil)
	var st StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if !st.Stale || st.Notes != 1 {
		t.Errorf("status before reload = %+v", st)
	}

	w = do(t, router, http.MethodPost, "/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Stale || st.Notes != 2 {
		t.Errorf("status after reload = %+v", st)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Auth"}, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/notes", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/notes/ghost", UpdateNoteRequest{Body: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

// SSE endpoint auth tests.

func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	e := testutil.TestEngine(t)

	// Writes headers and blocks until the client goes away.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(e, authEnabled, token, sseHandler)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with query token should not 401")
	}

	w = do(t, router, http.MethodGet, "/events?access_token=nope", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE wrong query token = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGet(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodPost, "/notes?access_token=secret123", CreateNoteRequest{Title: "Q"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
}
