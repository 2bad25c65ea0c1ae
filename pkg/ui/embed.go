// Package ui provides the embedded assets served by the metadata proxy.
package ui

import (
	_ "embed"
	"html/template"
)

// IndexHTML is the static landing page.
//
//go:embed index.html
var IndexHTML []byte

// ThumbnailSVG is the placeholder image used when a post has no preview image.
//
//go:embed thumbnail.svg
var ThumbnailSVG []byte

//go:embed preview.html
var previewHTML string

// PreviewTemplate renders a post's social preview page. It expects a
// *domain.Metadata with absolute URLs.
var PreviewTemplate = template.Must(template.New("preview").Parse(previewHTML))
