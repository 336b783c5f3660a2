package docconv

import "fmt"

// Format identifies a document type.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatDocx     Format = "docx"
	FormatXlsx     Format = "xlsx"
)

// Source is the raw content of a document before conversion.
type Source struct {
	Location    string // what the caller asked for: path or URL
	Name        string // file name used for format detection
	ContentType string // as reported by the origin, may be empty
	Data        []byte
}

// Chunk is one ordered text segment of a converted document.
type Chunk struct {
	Index    int
	Text     string
	Headings []string // heading path the text sits under, outermost first
	Tokens   int
}

// Result is the outcome of converting one document.
type Result struct {
	Format   Format
	Title    string
	Markdown string
	Chunks   []Chunk
}

// Texts returns the chunk texts in order. It never returns nil.
func (r *Result) Texts() []string {
	texts := make([]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		texts = append(texts, c.Text)
	}
	return texts
}

type ErrSourceNotFound struct {
	error
}

func NewErrSourceNotFound(location string) *ErrSourceNotFound {
	return &ErrSourceNotFound{fmt.Errorf("input file %q does not exist", location)}
}

type ErrUnsupportedFormat struct {
	error
}

func NewErrUnsupportedFormat(name string) *ErrUnsupportedFormat {
	return &ErrUnsupportedFormat{fmt.Errorf("unsupported document format: %q", name)}
}

type ErrSourceTooLarge struct {
	error
}

func NewErrSourceTooLarge(location string, max int64) *ErrSourceTooLarge {
	return &ErrSourceTooLarge{fmt.Errorf("source %q exceeds the maximum size of %d bytes", location, max)}
}
