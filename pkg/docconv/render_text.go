package docconv

import (
	"strings"
)

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// renderMarkdown passes markdown through, only normalizing line endings.
func renderMarkdown(src *Source) (string, string, error) {
	md := strings.TrimSpace(normalizeNewlines(string(src.Data)))
	return md, markdownTitle(md), nil
}

// renderText turns plain text into markdown paragraphs. Lines inside a
// paragraph are kept; runs of blank lines collapse into one.
func renderText(src *Source) (string, string, error) {
	text := normalizeNewlines(string(src.Data))

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			flush()
			continue
		}
		current = append(current, trimmed)
	}
	flush()

	title := ""
	if len(paragraphs) > 0 {
		title = firstLine(paragraphs[0])
	}
	return strings.Join(paragraphs, "\n\n"), title, nil
}

// markdownTitle returns the first ATX heading of md, or its first line.
func markdownTitle(md string) string {
	for _, line := range strings.Split(md, "\n") {
		if level, text := parseHeading(line); level > 0 {
			return text
		}
	}
	return firstLine(md)
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > 200 {
		text = string(r[:200])
	}
	return text
}

// parseHeading recognizes ATX headings ("# Title", "### Sub ###").
// It returns level 0 for anything else.
func parseHeading(line string) (int, string) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") || strings.HasPrefix(line, "    ") {
		return 0, ""
	}

	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level > 6 {
		return 0, ""
	}
	rest := trimmed[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, ""
	}

	text := strings.TrimSpace(rest)
	text = strings.TrimSpace(strings.TrimRight(text, "#"))
	if text == "" {
		return 0, ""
	}
	return level, text
}
