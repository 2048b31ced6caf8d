package utils

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Posts are short and carry their picture in image_url, so the renderer
// only knows inline emphasis, links, lists, quotes and code.
var (
	postMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	postPolicy = newPostPolicy()
)

func newPostPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "del", "code", "pre", "blockquote", "ul", "ol", "li")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// RenderMarkdown turns post or comment text into sanitized HTML. Unknown
// markup is stripped, never escaped into the output.
func RenderMarkdown(source string) string {
	if source == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := postMarkdown.Convert([]byte(source), &buf); err != nil {
		return postPolicy.Sanitize(source)
	}
	return EnhanceHTMLContent(postPolicy.Sanitize(buf.String()))
}
