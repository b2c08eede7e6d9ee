package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ogembed/api/internal/code"
	"github.com/ogembed/api/internal/embed"
	"github.com/ogembed/api/internal/handler"
	"github.com/ogembed/api/internal/og"
	"github.com/ogembed/api/internal/testutil"
)

func testRouter(t *testing.T, store embed.Store) http.Handler {
	t.Helper()

	h := handler.New(handler.Dependencies{
		Store:     store,
		PublicURL: "https://embeds.test",
	})

	r := chi.NewRouter()
	r.Post("/embed/create", h.CreateEmbed)
	r.Get("/embed/quick", h.QuickEmbed)
	r.Get("/embed/{code}", h.GetEmbed)
	r.Put("/embed/{code}", h.UpdateEmbed)
	r.Delete("/embed/{code}", h.DeleteEmbed)
	return r
}

func testStore(t *testing.T) embed.Store {
	t.Helper()

	db := testutil.TestDB(t)
	gen, err := code.NewGenerator("23456789abcdefghjkmnpqrstuvwxyz", 8)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return embed.NewRepository(db, gen, 0)
}

type createResponse struct {
	Code        string `json:"code"`
	OwnerSecret string `json:"owner_secret"`
	URL         string `json:"url"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, r http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func createEmbed(t *testing.T, r http.Handler, body string) createResponse {
	t.Helper()

	rec := doJSON(t, r, http.MethodPost, "/embed/create", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out createResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	return out
}

func TestCreateThenRead(t *testing.T) {
	r := testRouter(t, testStore(t))

	created := createEmbed(t, r, `{"title":"Hello","target_url":"https://example.com"}`)
	if created.Code == "" || created.OwnerSecret == "" {
		t.Fatalf("expected code and owner secret, got %+v", created)
	}
	if created.URL != "https://embeds.test/embed/"+created.Code {
		t.Fatalf("unexpected public URL %q", created.URL)
	}

	rec := doJSON(t, r, http.MethodGet, "/embed/"+created.Code, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected HTML by default, got %q", ct)
	}

	doc, err := og.Parse(rec.Body)
	if err != nil {
		t.Fatalf("parsing rendered page: %v", err)
	}
	if doc.Title != "Hello" {
		t.Fatalf("expected og:title Hello, got %q", doc.Title)
	}
	if doc.URL != "https://example.com" {
		t.Fatalf("expected og:url, got %q", doc.URL)
	}
	if strings.Contains(rec.Body.String(), created.OwnerSecret) {
		t.Fatal("rendered page must not leak the owner secret")
	}
}

func TestGetEmbed_JSONNegotiation(t *testing.T) {
	r := testRouter(t, testStore(t))
	created := createEmbed(t, r, `{"title":"Hello"}`)

	header := http.Header{"Accept": []string{"application/json"}}
	rec := doJSON(t, r, http.MethodGet, "/embed/"+created.Code, "", header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON, got %q", ct)
	}

	var e embed.Embed
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decoding embed: %v", err)
	}
	if e.Title == nil || *e.Title != "Hello" {
		t.Fatalf("expected title Hello, got %v", e.Title)
	}
	if strings.Contains(rec.Body.String(), "owner_secret") {
		t.Fatal("JSON representation must not carry the owner secret")
	}

	// text/html outranks application/json at a lower q-value.
	header = http.Header{"Accept": []string{"text/html, application/json;q=0.5"}}
	rec = doJSON(t, r, http.MethodGet, "/embed/"+created.Code, "", header)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected HTML for preferred text/html, got %q", ct)
	}
}

func TestGetEmbed_NotFound(t *testing.T) {
	r := testRouter(t, testStore(t))

	rec := doJSON(t, r, http.MethodGet, "/embed/missing1", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var out errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if out.Error.Code != handler.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %q", out.Error.Code)
	}
}

func TestCreateEmbed_Validation(t *testing.T) {
	r := testRouter(t, testStore(t))

	rec := doJSON(t, r, http.MethodPost, "/embed/create", `{"color":"chartreuse"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var out errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if out.Error.Code != handler.ErrCodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %q", out.Error.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/embed/create", `{not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestUpdateEmbed(t *testing.T) {
	r := testRouter(t, testStore(t))
	created := createEmbed(t, r, `{"title":"Hello","description":"World"}`)

	// No secret at all: rejected before any lookup.
	rec := doJSON(t, r, http.MethodPut, "/embed/"+created.Code, `{"title":"New"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}

	wrong := http.Header{"Authorization": []string{"Bearer 0000000000000000000000000000000000000000000000000000000000000000"}}
	rec = doJSON(t, r, http.MethodPut, "/embed/"+created.Code, `{"title":"New"}`, wrong)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", rec.Code)
	}

	auth := http.Header{"Authorization": []string{"Bearer " + created.OwnerSecret}}
	rec = doJSON(t, r, http.MethodPut, "/embed/"+created.Code, `{"title":"New","description":""}`, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var e embed.Embed
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decoding embed: %v", err)
	}
	if e.Title == nil || *e.Title != "New" {
		t.Fatalf("expected updated title, got %v", e.Title)
	}
	if e.Description != nil {
		t.Fatal("empty string must clear the description")
	}

	// Change is visible on the next read.
	jsonHdr := http.Header{"Accept": []string{"application/json"}}
	rec = doJSON(t, r, http.MethodGet, "/embed/"+created.Code, "", jsonHdr)
	if !strings.Contains(rec.Body.String(), `"New"`) {
		t.Fatal("update must be visible on the next read")
	}
}

func TestDeleteEmbed(t *testing.T) {
	r := testRouter(t, testStore(t))
	created := createEmbed(t, r, `{"title":"Hello"}`)

	rec := doJSON(t, r, http.MethodDelete, "/embed/"+created.Code, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}

	auth := http.Header{"Authorization": []string{"Bearer " + created.OwnerSecret}}
	rec = doJSON(t, r, http.MethodDelete, "/embed/"+created.Code, "", auth)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/embed/"+created.Code, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestQuickEmbed(t *testing.T) {
	r := testRouter(t, testStore(t))

	rec := doJSON(t, r, http.MethodGet, "/embed/quick?title=Fast&target_url=https%3A%2F%2Fexample.com", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	doc, err := og.Parse(rec.Body)
	if err != nil {
		t.Fatalf("parsing rendered page: %v", err)
	}
	if doc.Title != "Fast" {
		t.Fatalf("expected og:title Fast, got %q", doc.Title)
	}

	rec = doJSON(t, r, http.MethodGet, "/embed/quick?color=%23ff0000", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without title or description, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/embed/quick?title=x&color=purple", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid color, got %d", rec.Code)
	}
}

type failingStore struct{}

func (failingStore) Create(context.Context, embed.Fields) (*embed.Embed, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) Get(context.Context, string) (*embed.Embed, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) Update(context.Context, string, string, embed.Fields) (*embed.Embed, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) Delete(context.Context, string, string) error {
	return errors.New("database is locked")
}

func TestStoreFailureMapsTo503(t *testing.T) {
	r := testRouter(t, failingStore{})

	rec := doJSON(t, r, http.MethodPost, "/embed/create", `{"title":"x"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var out errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if out.Error.Code != handler.ErrCodeDependency {
		t.Fatalf("expected DEPENDENCY_UNAVAILABLE, got %q", out.Error.Code)
	}
	if strings.Contains(out.Error.Message, "locked") {
		t.Fatal("internal error details must not leak to clients")
	}
}
