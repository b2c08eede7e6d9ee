package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ogembed/api/internal/embed"
)

// maxBodySize bounds create/update request bodies. Embed fields top out
// far below this.
const maxBodySize = 64 << 10

// Handler serves the embed API.
type Handler struct {
	store     embed.Store
	publicURL string
}

// Dependencies holds everything a Handler needs.
type Dependencies struct {
	Store     embed.Store
	PublicURL string
}

func New(deps Dependencies) *Handler {
	return &Handler{
		store:     deps.Store,
		publicURL: strings.TrimRight(deps.PublicURL, "/"),
	}
}

// embedURL builds the public address of a stored embed.
func (h *Handler) embedURL(code string) string {
	return h.publicURL + "/embed/" + code
}

// decodeFields reads an embed fields payload from the request body.
func decodeFields(w http.ResponseWriter, r *http.Request) (embed.Fields, bool) {
	var in embed.Fields
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "request body is not valid JSON")
		return embed.Fields{}, false
	}
	return in, true
}

// bearerSecret extracts the owner secret from the Authorization header.
func bearerSecret(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// wantsJSON reports whether the client's Accept header prefers JSON
// over HTML, honoring q-values.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return false
	}

	best := ""
	bestQ := -1.0
	for _, part := range strings.Split(accept, ",") {
		mediaType, q := parseAcceptPart(part)
		if q > bestQ {
			best = mediaType
			bestQ = q
		}
	}
	return best == "application/json"
}

func parseAcceptPart(part string) (string, float64) {
	fields := strings.Split(part, ";")
	mediaType := strings.ToLower(strings.TrimSpace(fields[0]))
	q := 1.0
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		if v, ok := strings.CutPrefix(f, "q="); ok {
			q = parseQuality(v)
		}
	}
	return mediaType, q
}

func parseQuality(v string) float64 {
	// Accept headers in the wild carry sloppy q-values; treat anything
	// unparsable as q=1.
	q, err := strconv.ParseFloat(v, 64)
	if err != nil || q < 0 || q > 1 {
		return 1.0
	}
	return q
}
