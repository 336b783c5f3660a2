package docconv

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// renderDocx reads word/document.xml and maps heading styles to ATX
// headings. Everything else becomes a paragraph.
func renderDocx(src *Source) (string, string, error) {
	r, err := zip.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
	if err != nil {
		return "", "", fmt.Errorf("open docx archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", "", fmt.Errorf("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	var blocks []string
	var title string
	var text strings.Builder
	var style string
	inParagraph, inText := false, false

	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				text.Reset()
				style = ""
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					text.WriteByte('\t')
				}
			case "br":
				if inParagraph {
					text.WriteByte('\n')
				}
			}

		case xml.CharData:
			if inText {
				text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inParagraph = false
				content := strings.TrimSpace(text.String())
				if content == "" {
					continue
				}
				if level := docxHeadingLevel(style); level > 0 {
					if title == "" {
						title = content
					}
					blocks = append(blocks, strings.Repeat("#", level)+" "+content)
				} else {
					blocks = append(blocks, content)
				}
			}
		}
	}

	if title == "" && len(blocks) > 0 {
		title = firstLine(blocks[0])
	}
	return strings.Join(blocks, "\n\n"), title, nil
}

// docxHeadingLevel maps a paragraph style name to a heading level:
// "Title" is 1, "Subtitle" 2, "Heading3" 3. Zero means body text.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}

	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if rest, ok := strings.CutPrefix(lower, prefix); ok {
			rest = strings.TrimSpace(rest)
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}
