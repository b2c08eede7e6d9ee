package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ogembed/api/internal/embed"
	"github.com/ogembed/api/internal/og"
)

type createResponse struct {
	Code        string `json:"code"`
	OwnerSecret string `json:"owner_secret"`
	URL         string `json:"url"`
}

// CreateEmbed handles POST /embed/create.
func (h *Handler) CreateEmbed(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeFields(w, r)
	if !ok {
		return
	}

	e, err := h.store.Create(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		Code:        e.Code,
		OwnerSecret: e.OwnerSecret,
		URL:         h.embedURL(e.Code),
	})
}

// GetEmbed handles GET /embed/{code}: OpenGraph HTML by default, the
// raw display fields when the client prefers JSON.
func (h *Handler) GetEmbed(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	e, err := h.store.Get(r.Context(), code)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, e)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(og.Render(e))
}

// UpdateEmbed handles PUT /embed/{code}. The owner secret arrives as a
// bearer token; a request with no secret is rejected before any lookup
// so callers cannot probe code existence.
func (h *Handler) UpdateEmbed(w http.ResponseWriter, r *http.Request) {
	secret := bearerSecret(r)
	if secret == "" {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "owner secret required")
		return
	}

	in, ok := decodeFields(w, r)
	if !ok {
		return
	}

	e, err := h.store.Update(r.Context(), chi.URLParam(r, "code"), secret, in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// DeleteEmbed handles DELETE /embed/{code}.
func (h *Handler) DeleteEmbed(w http.ResponseWriter, r *http.Request) {
	secret := bearerSecret(r)
	if secret == "" {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "owner secret required")
		return
	}

	if err := h.store.Delete(r.Context(), chi.URLParam(r, "code"), secret); err != nil {
		writeStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// QuickEmbed handles GET /embed/quick: renders OpenGraph HTML straight
// from query parameters without saving anything.
func (h *Handler) QuickEmbed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := embed.Fields{
		Title:        queryField(q.Get("title")),
		Description:  queryField(q.Get("description")),
		Color:        queryField(q.Get("color")),
		ThumbnailURL: queryField(q.Get("thumbnail_url")),
		TargetURL:    queryField(q.Get("target_url")),
		AuthorName:   queryField(q.Get("author_name")),
	}

	if in.Title == nil && in.Description == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "provide at least one of title or description")
		return
	}
	if err := in.Validate(); err != nil {
		writeStoreError(w, r, err)
		return
	}

	e := &embed.Embed{
		Title:        in.Title,
		Description:  in.Description,
		Color:        in.Color,
		ThumbnailURL: in.ThumbnailURL,
		TargetURL:    in.TargetURL,
		AuthorName:   in.AuthorName,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(og.Render(e))
}

func queryField(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
