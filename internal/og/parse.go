package og

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Document holds OpenGraph metadata parsed out of an HTML head.
type Document struct {
	Title       string
	Description string
	ImageURL    string
	URL         string
	SiteName    string
	ThemeColor  string
	// Tags holds every og:* property plus theme-color and twitter:card,
	// keyed by property/name.
	Tags map[string]string
}

// Parse extracts OpenGraph meta tags from an HTML document. Parsing
// stops at <body>; preview clients only read the head.
func Parse(r io.Reader) (*Document, error) {
	tokenizer := html.NewTokenizer(r)
	doc := &Document{Tags: map[string]string{}}

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			err := tokenizer.Err()
			if err == io.EOF {
				return doc, nil
			}
			return doc, err

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tag := string(tn)

			if tag == "body" {
				return doc, nil
			}
			if tag != "meta" || !hasAttr {
				continue
			}

			var property, name, content string
			for {
				key, val, more := tokenizer.TagAttr()
				switch string(key) {
				case "property":
					property = string(val)
				case "name":
					name = string(val)
				case "content":
					content = string(val)
				}
				if !more {
					break
				}
			}

			switch {
			case strings.HasPrefix(property, "og:"):
				doc.Tags[property] = content
				switch property {
				case "og:title":
					doc.Title = content
				case "og:description":
					doc.Description = content
				case "og:image":
					doc.ImageURL = content
				case "og:url":
					doc.URL = content
				case "og:site_name":
					doc.SiteName = content
				}
			case name == "theme-color":
				doc.Tags[name] = content
				doc.ThemeColor = content
			case name == "twitter:card":
				doc.Tags[name] = content
			}
		}
	}
}
