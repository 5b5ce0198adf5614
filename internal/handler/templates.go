package handler

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageTemplates はバイナリに埋め込まれたHTMLテンプレート。
var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))
