package docconv

import (
	"archive/zip"
	"bytes"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

var extensionFormats = map[string]Format{
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".txt":      FormatText,
	".text":     FormatText,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".pdf":      FormatPDF,
	".docx":     FormatDocx,
	".xlsx":     FormatXlsx,
}

var contentTypeFormats = map[string]Format{
	"text/markdown":            FormatMarkdown,
	"text/x-markdown":          FormatMarkdown,
	"text/plain":               FormatText,
	"text/html":                FormatHTML,
	"application/xhtml+xml":    FormatHTML,
	"application/pdf":          FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDocx,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       FormatXlsx,
}

// Detect picks the format of src: file extension first, then the content
// type reported by the origin, then the content itself.
func Detect(src *Source) (Format, error) {
	if ext := strings.ToLower(filepath.Ext(src.Name)); ext != "" {
		if f, ok := extensionFormats[ext]; ok {
			return f, nil
		}
	}

	if src.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(src.ContentType); err == nil {
			if f, ok := contentTypeFormats[mt]; ok {
				return f, nil
			}
		}
	}

	return sniff(src)
}

func sniff(src *Source) (Format, error) {
	data := src.Data
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return FormatPDF, nil
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return sniffZip(src)
	}

	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "text/html"):
		return FormatHTML, nil
	case strings.HasPrefix(ct, "text/plain"):
		return FormatText, nil
	}

	return "", NewErrUnsupportedFormat(src.Name)
}

func sniffZip(src *Source) (Format, error) {
	r, err := zip.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
	if err != nil {
		return "", NewErrUnsupportedFormat(src.Name)
	}
	for _, f := range r.File {
		switch f.Name {
		case "word/document.xml":
			return FormatDocx, nil
		case "xl/workbook.xml":
			return FormatXlsx, nil
		}
	}
	return "", NewErrUnsupportedFormat(src.Name)
}

// SupportedFormats lists the formats Convert understands.
func SupportedFormats() []Format {
	return []Format{FormatMarkdown, FormatText, FormatHTML, FormatPDF, FormatDocx, FormatXlsx}
}
