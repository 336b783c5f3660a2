package docconv

import (
	"bytes"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type htmlRenderer struct {
	policy      *bluemonday.Policy
	mdConverter *converter.Converter
}

func newHTMLRenderer() *htmlRenderer {
	return &htmlRenderer{
		policy: bluemonday.UGCPolicy(),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// render sanitizes the page, converts it to markdown and puts the page
// title on top when the body carries no heading of its own.
func (h *htmlRenderer) render(src *Source) (string, string, error) {
	title := htmlTitle(src.Data)

	clean := h.policy.SanitizeBytes(src.Data)

	// relative links only resolve for documents fetched from a URL
	domain := ""
	if IsRemote(src.Location) {
		domain = src.Location
	}

	md, err := h.mdConverter.ConvertString(string(clean), converter.WithDomain(domain))
	if err != nil {
		return "", "", err
	}
	md = strings.TrimSpace(md)

	if title != "" && !hasHeading(md) {
		md = strings.TrimSpace("# " + title + "\n\n" + md)
	}
	if title == "" {
		title = markdownTitle(md)
	}
	return md, title, nil
}

func hasHeading(md string) bool {
	for _, line := range strings.Split(md, "\n") {
		if level, _ := parseHeading(line); level > 0 {
			return true
		}
	}
	return false
}

// htmlTitle returns the text of the first <title> element.
func htmlTitle(data []byte) string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	var find func(n *html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			return strings.Join(strings.Fields(sb.String()), " ")
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			return ""
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}

	return find(doc)
}
