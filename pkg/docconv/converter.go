// Package docconv converts documents into markdown and text chunks.
//
// Supported formats:
//   - .md, .markdown: passthrough
//   - .txt: paragraphs
//   - .html, .htm: sanitized, converted with html-to-markdown
//   - .pdf: page text through pdfcpu
//   - .docx: word/document.xml paragraphs and heading styles
//   - .xlsx: one markdown table per sheet
//
// Documents are read from local paths, http(s) URLs or, when an S3Fetcher
// is registered, s3://bucket/key locations.
//
// Usage:
//
//	conv := docconv.New()
//	res, err := conv.Convert(ctx, "/path/to/file.docx")
//	fmt.Println(res.Title, len(res.Chunks), "chunks")
package docconv

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type Option func(c *Converter)

// Converter is safe for concurrent use.
type Converter struct {
	fetchers []Fetcher
	extra    []Fetcher
	client   *http.Client
	maxSize  int64
	chunking ChunkOptions
	chunker  *HybridChunker
	html     *htmlRenderer
}

func New(opts ...Option) *Converter {
	c := &Converter{
		maxSize: defaultMaxSize,
	}
	for _, o := range opts {
		o(c)
	}

	// caller supplied fetchers are consulted before the built-in ones
	c.fetchers = append(c.fetchers, c.extra...)
	c.fetchers = append(c.fetchers, NewHTTPFetcher(c.client, c.maxSize), NewFileFetcher(c.maxSize))
	c.chunker = NewHybridChunker(c.chunking)
	c.html = newHTMLRenderer()

	return c
}

func WithFetcher(f Fetcher) Option {
	return func(c *Converter) {
		c.extra = append(c.extra, f)
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Converter) {
		c.client = client
	}
}

func WithMaxFileSize(size int64) Option {
	return func(c *Converter) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

func WithChunkOptions(opts ChunkOptions) Option {
	return func(c *Converter) {
		c.chunking = opts
	}
}

// Convert loads the document at location, renders it to markdown and chunks
// the rendering.
func (c *Converter) Convert(ctx context.Context, location string) (*Result, error) {
	src, err := fetch(ctx, c.fetchers, location)
	if err != nil {
		return nil, err
	}

	format, err := Detect(src)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	md, title, err := c.render(format, src)
	if err != nil {
		return nil, fmt.Errorf("convert %s (%s): %w", location, format, err)
	}
	if strings.TrimSpace(md) == "" {
		return nil, fmt.Errorf("convert %s (%s): no text content", location, format)
	}

	chunks := c.chunker.Chunk(md)

	zap.S().Named("docconv").Debugw("document converted", "location", location, "format", format, "chunks", len(chunks))

	return &Result{
		Format:   format,
		Title:    title,
		Markdown: md,
		Chunks:   chunks,
	}, nil
}

func (c *Converter) render(format Format, src *Source) (string, string, error) {
	switch format {
	case FormatMarkdown:
		return renderMarkdown(src)
	case FormatText:
		return renderText(src)
	case FormatHTML:
		return c.html.render(src)
	case FormatPDF:
		return renderPDF(src)
	case FormatDocx:
		return renderDocx(src)
	case FormatXlsx:
		return renderXlsx(src)
	default:
		return "", "", NewErrUnsupportedFormat(src.Name)
	}
}
