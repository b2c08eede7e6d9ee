package embed

import (
	"context"
	"net/url"
	"regexp"
	"time"
	"unicode/utf8"
)

// Embed is one stored embed document. Display fields are pointers so
// that an absent field stays distinct from one set to the empty string.
type Embed struct {
	Code         string     `json:"code"`
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Color        *string    `json:"color,omitempty"`
	ThumbnailURL *string    `json:"thumbnail_url,omitempty"`
	TargetURL    *string    `json:"target_url,omitempty"`
	AuthorName   *string    `json:"author_name,omitempty"`
	OwnerSecret  string     `json:"-"` // write-only capability, never serialized
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Fields carries the display fields of a create or update request.
// nil means "not supplied"; on update an empty string clears the field.
type Fields struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Color        *string `json:"color"`
	ThumbnailURL *string `json:"thumbnail_url"`
	TargetURL    *string `json:"target_url"`
	AuthorName   *string `json:"author_name"`
}

// Store is the code-addressed embed store. Get never returns the owner
// secret to transport layers; Create is the only operation that does.
type Store interface {
	Create(ctx context.Context, in Fields) (*Embed, error)
	Get(ctx context.Context, code string) (*Embed, error)
	Update(ctx context.Context, code, secret string, in Fields) (*Embed, error)
	Delete(ctx context.Context, code, secret string) error
}

// Field length bounds. Clients past these limits get truncated by
// preview renderers anyway.
const (
	MaxTitleLen       = 256
	MaxDescriptionLen = 2048
	MaxAuthorNameLen  = 256
	MaxURLLen         = 2048
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks field bounds and URL shapes. It returns the first
// *ValidationError encountered, or nil.
func (f Fields) Validate() error {
	if f.Title != nil && utf8.RuneCountInString(*f.Title) > MaxTitleLen {
		return &ValidationError{Field: "title", Message: "must be at most 256 characters"}
	}
	if f.Description != nil && utf8.RuneCountInString(*f.Description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Message: "must be at most 2048 characters"}
	}
	if f.AuthorName != nil && utf8.RuneCountInString(*f.AuthorName) > MaxAuthorNameLen {
		return &ValidationError{Field: "author_name", Message: "must be at most 256 characters"}
	}
	if f.Color != nil && *f.Color != "" && !colorPattern.MatchString(*f.Color) {
		return &ValidationError{Field: "color", Message: "must be a #RRGGBB hex color"}
	}
	if err := validateFieldURL("thumbnail_url", f.ThumbnailURL); err != nil {
		return err
	}
	if err := validateFieldURL("target_url", f.TargetURL); err != nil {
		return err
	}
	return nil
}

func validateFieldURL(field string, value *string) error {
	if value == nil || *value == "" {
		return nil
	}
	if len(*value) > MaxURLLen {
		return &ValidationError{Field: field, Message: "must be at most 2048 characters"}
	}
	u, err := url.Parse(*value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// apply merges an update into the embed: nil leaves a field unchanged,
// an empty string clears it back to absent.
func (e *Embed) apply(in Fields) {
	merge := func(dst **string, src *string) {
		if src == nil {
			return
		}
		if *src == "" {
			*dst = nil
			return
		}
		v := *src
		*dst = &v
	}
	merge(&e.Title, in.Title)
	merge(&e.Description, in.Description)
	merge(&e.Color, in.Color)
	merge(&e.ThumbnailURL, in.ThumbnailURL)
	merge(&e.TargetURL, in.TargetURL)
	merge(&e.AuthorName, in.AuthorName)
}
