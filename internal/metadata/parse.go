package metadata

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ogData holds the social preview fields found in a document head.
type ogData struct {
	Title       string
	Description string
	ImageURL    string
	VideoURL    string
	VideoType   string
	PageTitle   string
}

// parseOG extracts og:* and twitter:* meta tags plus the page <title>.
// Parsing stops at <body>.
func parseOG(r io.Reader) *ogData {
	z := html.NewTokenizer(r)
	data := &ogData{}

	for {
		switch z.Next() {
		case html.ErrorToken:
			return data

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := z.TagName()
			tag := string(tn)

			if tag == "body" {
				return data
			}

			if tag == "title" && data.PageTitle == "" {
				if z.Next() == html.TextToken {
					data.PageTitle = strings.TrimSpace(string(z.Text()))
				}
				continue
			}

			if tag == "meta" && hasAttr {
				attrs := readAttrs(z)
				prop := attrs["property"]
				if prop == "" {
					prop = attrs["name"]
				}
				applyMeta(data, prop, strings.TrimSpace(attrs["content"]))
			}
		}
	}
}

func applyMeta(data *ogData, prop, content string) {
	if content == "" {
		return
	}
	switch prop {
	case "og:title":
		data.Title = content
	case "og:description":
		data.Description = content
	case "og:image", "og:image:secure_url":
		if data.ImageURL == "" {
			data.ImageURL = content
		}
	case "twitter:image":
		if data.ImageURL == "" {
			data.ImageURL = content
		}
	case "og:video", "og:video:secure_url", "og:video:url":
		if data.VideoURL == "" {
			data.VideoURL = content
		}
	case "og:video:type":
		data.VideoType = content
	}
}

// readAttrs collects all attributes from the current tag token.
func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		if k := string(key); k != "" {
			attrs[k] = string(val)
		}
		if !more {
			break
		}
	}
	return attrs
}

var sanitizer = strings.NewReplacer(`"`, "", "'", "", "<", "", ">", "")

// sanitize strips quote and angle-bracket characters from text that ends up
// in generated markup.
func sanitize(s string) string {
	return strings.TrimSpace(sanitizer.Replace(s))
}
