// Package og renders embed documents as HTML pages carrying OpenGraph
// meta tags, and parses such pages back for verification.
package og

import (
	"bytes"
	"html"
	"net/url"

	"github.com/ogembed/api/internal/embed"
)

// Render produces the OpenGraph HTML document for an embed. It is a
// pure function: the same embed always yields byte-identical output.
// Absent and empty fields are omitted, never rendered as empty tags,
// and stored URLs that no longer parse as http(s) are dropped rather
// than handed to preview clients.
func Render(e *embed.Embed) []byte {
	var b bytes.Buffer

	b.WriteString("<!doctype html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<meta property=\"og:type\" content=\"website\">\n")

	writeProperty(&b, "og:title", strVal(e.Title))
	writeProperty(&b, "og:description", strVal(e.Description))
	writeProperty(&b, "og:image", safeURL(e.ThumbnailURL))
	writeProperty(&b, "og:url", safeURL(e.TargetURL))
	writeProperty(&b, "og:site_name", strVal(e.AuthorName))

	if c := strVal(e.Color); c != "" {
		writeName(&b, "theme-color", c)
	}
	if safeURL(e.ThumbnailURL) != "" {
		writeName(&b, "twitter:card", "summary_large_image")
	}
	if target := safeURL(e.TargetURL); target != "" {
		b.WriteString("<meta http-equiv=\"refresh\" content=\"0; url=" + html.EscapeString(target) + "\">\n")
	}

	if t := strVal(e.Title); t != "" {
		b.WriteString("<title>" + html.EscapeString(t) + "</title>\n")
	}

	b.WriteString("</head>\n<body></body>\n</html>\n")
	return b.Bytes()
}

func writeProperty(b *bytes.Buffer, property, content string) {
	if content == "" {
		return
	}
	b.WriteString("<meta property=\"" + property + "\" content=\"" + html.EscapeString(content) + "\">\n")
}

func writeName(b *bytes.Buffer, name, content string) {
	b.WriteString("<meta name=\"" + name + "\" content=\"" + html.EscapeString(content) + "\">\n")
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// safeURL returns the URL if it is an absolute http(s) URL, else "".
func safeURL(s *string) string {
	if s == nil || *s == "" {
		return ""
	}
	u, err := url.Parse(*s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return *s
}
