package docconv

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// renderPDF extracts the text of every page and emits one paragraph per
// page. Scanned PDFs without a text layer yield an error.
func renderPDF(src *Source) (string, string, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(src.Data), conf)
	if err != nil {
		return "", "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		text := pageText(ctx, pageNr)
		if text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", "", fmt.Errorf("no text content found in PDF")
	}

	return strings.Join(pages, "\n\n"), firstLine(pages[0]), nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromContentStream(data)
}

// textFromContentStream pulls the operands of the text showing operators
// (Tj, TJ, ', ") out of a decoded content stream. Positioning and text
// object operators become whitespace.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	space := func() {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
	}

	var operands []pdfToken
	lex := &pdfLexer{data: data}
	for {
		tok, ok := lex.next()
		if !ok {
			break
		}
		if tok.kind != pdfOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			writeLastString(&sb, operands)
		case "'", `"`:
			space()
			writeLastString(&sb, operands)
		case "TJ":
			for _, op := range operands {
				switch op.kind {
				case pdfString:
					sb.WriteString(op.text)
				case pdfNumber:
					// a wide negative adjustment separates words
					if n, err := strconv.ParseFloat(op.text, 64); err == nil && n < -200 {
						sb.WriteByte(' ')
					}
				}
			}
		case "Td", "TD", "T*", "Tm", "BT", "ET":
			space()
		case "ID":
			lex.skipInlineImage()
		}
		operands = operands[:0]
	}

	return collapseWhitespace(sb.String())
}

func writeLastString(sb *strings.Builder, operands []pdfToken) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == pdfString {
			sb.WriteString(operands[i].text)
			return
		}
	}
}

type pdfTokenKind int

const (
	pdfOperator pdfTokenKind = iota
	pdfString
	pdfNumber
	pdfOther
)

type pdfToken struct {
	kind pdfTokenKind
	text string
}

// pdfLexer splits a content stream into operands and operators. Array
// brackets are dropped so the elements of a TJ array arrive as plain
// operands.
type pdfLexer struct {
	data []byte
	pos  int
}

func (l *pdfLexer) next() (pdfToken, bool) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFSpace(c), c == '[', c == ']', c == '{', c == '}':
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			return pdfToken{kind: pdfString, text: decodePDFString(l.literal())}, true
		case c == '<' && l.peek(1) == '<', c == '>' && l.peek(1) == '>':
			l.pos += 2
		case c == '<':
			return pdfToken{kind: pdfString, text: decodePDFHex(l.hex())}, true
		case c == '/':
			l.pos++
			l.regular()
			return pdfToken{kind: pdfOther}, true
		default:
			word := l.regular()
			if word == "" {
				// stray delimiter
				l.pos++
				continue
			}
			if isPDFNumber(word) {
				return pdfToken{kind: pdfNumber, text: word}, true
			}
			return pdfToken{kind: pdfOperator, text: word}, true
		}
	}
	return pdfToken{}, false
}

func (l *pdfLexer) peek(n int) byte {
	if l.pos+n < len(l.data) {
		return l.data[l.pos+n]
	}
	return 0
}

// literal consumes a (string) with balanced parentheses and returns its raw
// body, escapes untouched.
func (l *pdfLexer) literal() []byte {
	l.pos++
	start, depth := l.pos, 1
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case '\\':
			l.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				raw := l.data[start:l.pos]
				l.pos++
				return raw
			}
		}
		l.pos++
	}
	return l.data[start:]
}

func (l *pdfLexer) hex() []byte {
	l.pos++
	start := l.pos
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		l.pos++
	}
	raw := l.data[start:l.pos]
	if l.pos < len(l.data) {
		l.pos++
	}
	return raw
}

func (l *pdfLexer) regular() string {
	start := l.pos
	for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelimiter(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// skipInlineImage jumps past the binary data of an inline image up to EI.
func (l *pdfLexer) skipInlineImage() {
	for l.pos+2 < len(l.data) {
		if isPDFSpace(l.data[l.pos]) && l.data[l.pos+1] == 'E' && l.data[l.pos+2] == 'I' &&
			(l.pos+3 == len(l.data) || isPDFSpace(l.data[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isPDFNumber(word string) bool {
	_, err := strconv.ParseFloat(word, 64)
	return err == nil
}

// decodePDFHex decodes a <hex> string. Two byte codes (a UTF-16BE byte
// order mark, or zero high bytes as written for Identity-H fonts) are read
// as UTF-16BE, anything else as single byte codes.
func decodePDFHex(raw []byte) string {
	clean := make([]byte, 0, len(raw))
	for _, c := range raw {
		if !isPDFSpace(c) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	b, err := hex.DecodeString(string(clean))
	if err != nil {
		return ""
	}

	if len(b) >= 2 && len(b)%2 == 0 && (b[0] == 0xfe && b[1] == 0xff || b[0] == 0x00) {
		if b[0] == 0xfe && b[1] == 0xff {
			b = b[2:]
		}
		units := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}

	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

// decodePDFString resolves the escape sequences of a PDF literal string.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}

		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				continue
			}
			// up to three octal digits
			val := int(c - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			// PDFDocEncoding matches Latin-1 for the printable range
			sb.WriteRune(rune(val))
		}
	}
	return sb.String()
}

func collapseWhitespace(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
