// Package report assembles the final rendered output the pipeline produces
// for its human readers: a canonical JSON document, a Markdown document, or
// an HTML document that links screenshots by file path and shows
// Markdown-rendered summaries.
package report

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	textTemplate "text/template"

	"github.com/russross/blackfriday/v2"

	"github.com/libraxis-labs/screenscribe/pkg/types"
)

//go:embed templates/report.html.tmpl
var htmlTemplateSource string

//go:embed templates/report.md.tmpl
var markdownTemplateSource string

// Format names an output rendering.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// templateData is the shape both templates render against.
type templateData struct {
	types.Report
	Title         string
	Language      string
	VideoSrc      string
	VideoEmbedded bool
}

// Render produces the rendered report document in the requested format.
// r.EmbedVideo only affects FormatHTML: it inlines the source video as a
// base64 data: URI instead of linking to VideoPath on disk.
func Render(r types.Report, format Format, language string) (string, error) {
	switch format {
	case FormatJSON:
		return renderJSON(r)
	case FormatMarkdown:
		return renderMarkdown(r, language)
	case FormatHTML:
		return renderHTML(r, language)
	default:
		return "", fmt.Errorf("report: unknown format %q", format)
	}
}

func renderJSON(r types.Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: encode json: %w", err)
	}
	return string(data), nil
}

func renderMarkdown(r types.Report, language string) (string, error) {
	tmpl, err := textTemplate.New("report.md").Funcs(textTemplate.FuncMap{
		"formatTimestamp": formatTimestamp,
	}).Parse(markdownTemplateSource)
	if err != nil {
		return "", fmt.Errorf("report: parse markdown template: %w", err)
	}

	data := templateData{Report: r, Title: fmt.Sprintf("Review: %s", r.VideoPath), Language: language}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("report: render markdown: %w", err)
	}
	return buf.String(), nil
}

func renderHTML(r types.Report, language string) (string, error) {
	tmpl, err := template.New("report.html").Funcs(template.FuncMap{
		"formatTimestamp": formatTimestamp,
		"renderMarkdown":  renderMarkdownToHTML,
	}).Parse(htmlTemplateSource)
	if err != nil {
		return "", fmt.Errorf("report: parse html template: %w", err)
	}

	data := templateData{Report: r, Title: fmt.Sprintf("Review: %s", r.VideoPath), Language: language}
	if r.VideoPath != "" {
		if r.EmbedVideo {
			uri, err := videoDataURI(r.VideoPath)
			if err != nil {
				return "", fmt.Errorf("report: embed video: %w", err)
			}
			data.VideoSrc = uri
			data.VideoEmbedded = true
		} else {
			data.VideoSrc = r.VideoPath
		}
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("report: render html: %w", err)
	}
	return buf.String(), nil
}

// videoMIMEByExt maps the container extensions the pipeline is expected to
// accept to their video/* MIME type, for the --embed-video data: URI.
var videoMIMEByExt = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

// videoDataURI reads videoPath in full and returns it as a base64 "data:"
// URI suitable for an HTML <video> src, per --embed-video.
func videoDataURI(videoPath string) (string, error) {
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return "", err
	}
	mime := videoMIMEByExt[strings.ToLower(filepath.Ext(videoPath))]
	if mime == "" {
		mime = "video/mp4"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

// renderMarkdownToHTML converts a summary's Markdown-formatted text to
// sanitized HTML for embedding in the report template.
func renderMarkdownToHTML(content string) template.HTML {
	extensions := blackfriday.CommonExtensions | blackfriday.HardLineBreak | blackfriday.NoEmptyLineBeforeBlock
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML | blackfriday.Safelink,
	})
	html := blackfriday.Run([]byte(content), blackfriday.WithExtensions(extensions), blackfriday.WithRenderer(renderer))
	return template.HTML(html)
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
