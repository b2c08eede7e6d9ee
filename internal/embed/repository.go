package embed

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// CodeGenerator supplies fresh candidate codes for new embeds.
type CodeGenerator interface {
	Generate() (string, error)
}

// createAttempts bounds the collision retry loop. With the default code
// space this is never reached in practice.
const createAttempts = 5

// Repository persists embeds in sqlite. It allocates codes through the
// generator, retrying on collision so callers never see one.
type Repository struct {
	db    *sql.DB
	codes CodeGenerator
	ttl   time.Duration // 0 = embeds never expire
	now   func() time.Time
}

func NewRepository(db *sql.DB, codes CodeGenerator, ttl time.Duration) *Repository {
	return &Repository{db: db, codes: codes, ttl: ttl, now: time.Now}
}

func (r *Repository) Create(ctx context.Context, in Fields) (*Embed, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	secret, err := newOwnerSecret()
	if err != nil {
		return nil, fmt.Errorf("generating owner secret: %w", err)
	}

	now := r.now().UTC()
	e := &Embed{
		Title:        in.Title,
		Description:  in.Description,
		Color:        in.Color,
		ThumbnailURL: in.ThumbnailURL,
		TargetURL:    in.TargetURL,
		AuthorName:   in.AuthorName,
		OwnerSecret:  secret,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if r.ttl > 0 {
		exp := now.Add(r.ttl)
		e.ExpiresAt = &exp
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		c, err := r.codes.Generate()
		if err != nil {
			return nil, fmt.Errorf("generating code: %w", err)
		}

		_, err = r.db.ExecContext(ctx, `
			INSERT INTO embeds (code, title, description, color, thumbnail_url, target_url, author_name, owner_secret, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c, e.Title, e.Description, e.Color, e.ThumbnailURL, e.TargetURL, e.AuthorName,
			e.OwnerSecret, now.Format(time.RFC3339), now.Format(time.RFC3339), formatNullableTime(e.ExpiresAt))
		if err != nil {
			if isUniqueConstraintError(err) {
				continue
			}
			return nil, err
		}

		e.Code = c
		return e, nil
	}

	return nil, ErrCodeSpaceExhausted
}

func (r *Repository) Get(ctx context.Context, c string) (*Embed, error) {
	e, err := r.scanEmbed(r.db.QueryRowContext(ctx, `
		SELECT code, title, description, color, thumbnail_url, target_url, author_name, owner_secret, created_at, updated_at, expires_at
		FROM embeds WHERE code = ?
	`, c))
	if err != nil {
		return nil, err
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(r.now().UTC()) {
		// Expired but not yet swept; reads must not resurrect it.
		return nil, ErrNotFound
	}
	e.OwnerSecret = ""
	return e, nil
}

func (r *Repository) Update(ctx context.Context, c, secret string, in Fields) (*Embed, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	e, err := r.getWithSecret(ctx, c)
	if err != nil {
		return nil, err
	}
	if !secretMatches(e.OwnerSecret, secret) {
		return nil, ErrUnauthorized
	}

	e.apply(in)
	e.UpdatedAt = r.now().UTC()

	_, err = r.db.ExecContext(ctx, `
		UPDATE embeds SET
			title = ?, description = ?, color = ?, thumbnail_url = ?, target_url = ?, author_name = ?, updated_at = ?
		WHERE code = ?
	`, e.Title, e.Description, e.Color, e.ThumbnailURL, e.TargetURL, e.AuthorName,
		e.UpdatedAt.Format(time.RFC3339), c)
	if err != nil {
		return nil, err
	}

	e.OwnerSecret = ""
	return e, nil
}

func (r *Repository) Delete(ctx context.Context, c, secret string) error {
	e, err := r.getWithSecret(ctx, c)
	if err != nil {
		return err
	}
	if !secretMatches(e.OwnerSecret, secret) {
		return ErrUnauthorized
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM embeds WHERE code = ?`, c)
	return err
}

// DeleteExpired hard-removes embeds whose TTL has lapsed and reports how
// many were swept.
func (r *Repository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM embeds WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, r.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) getWithSecret(ctx context.Context, c string) (*Embed, error) {
	e, err := r.scanEmbed(r.db.QueryRowContext(ctx, `
		SELECT code, title, description, color, thumbnail_url, target_url, author_name, owner_secret, created_at, updated_at, expires_at
		FROM embeds WHERE code = ?
	`, c))
	if err != nil {
		return nil, err
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(r.now().UTC()) {
		return nil, ErrNotFound
	}
	return e, nil
}

func (r *Repository) scanEmbed(row *sql.Row) (*Embed, error) {
	var e Embed
	var title, description, color, thumbnailURL, targetURL, authorName, expiresAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&e.Code,
		&title,
		&description,
		&color,
		&thumbnailURL,
		&targetURL,
		&authorName,
		&e.OwnerSecret,
		&createdAt,
		&updatedAt,
		&expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.Title = nullableString(title)
	e.Description = nullableString(description)
	e.Color = nullableString(color)
	e.ThumbnailURL = nullableString(thumbnailURL)
	e.TargetURL = nullableString(targetURL)
	e.AuthorName = nullableString(authorName)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, expiresAt.String)
		e.ExpiresAt = &t
	}

	return &e, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func formatNullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// newOwnerSecret returns 32 bytes of crypto/rand as hex. Returned once
// at creation; possession is the sole mutation capability.
func newOwnerSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func secretMatches(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
