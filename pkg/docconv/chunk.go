package docconv

import (
	"slices"
	"strings"
)

const (
	DefaultMaxTokens = 512
	DefaultMinTokens = 32
)

// ChunkOptions configures HybridChunker. Tokens are whitespace-separated words.
type ChunkOptions struct {
	// MaxTokens is the upper bound of a chunk. Default: 512.
	MaxTokens int
	// MinTokens is the size under which neighbouring chunks of the same
	// section are merged. Default: 32.
	MinTokens int
}

func (o *ChunkOptions) defaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.MinTokens <= 0 {
		o.MinTokens = DefaultMinTokens
	}
	if o.MinTokens > o.MaxTokens {
		o.MinTokens = o.MaxTokens
	}
}

// HybridChunker splits markdown in two passes. The hierarchical pass cuts
// the document at headings and remembers the heading path of every
// section. The size pass packs each section's paragraphs into chunks of at
// most MaxTokens, splits paragraphs that are too long on word boundaries and
// merges undersized neighbours that share a heading path.
type HybridChunker struct {
	opts ChunkOptions
}

func NewHybridChunker(opts ChunkOptions) *HybridChunker {
	opts.defaults()
	return &HybridChunker{opts: opts}
}

type section struct {
	headings   []string
	paragraphs []string
}

// Chunk returns the chunks of md in document order.
func (c *HybridChunker) Chunk(md string) []Chunk {
	var chunks []Chunk
	for _, s := range splitSections(md) {
		chunks = append(chunks, c.packSection(s)...)
	}

	chunks = c.mergePeers(chunks)
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

// splitSections walks md line by line. Headings inside fenced code blocks
// are left alone and a fenced block always stays in one paragraph.
func splitSections(md string) []section {
	var sections []section
	var headings []string
	current := section{}
	var para []string
	inFence := false

	flushPara := func() {
		if len(para) > 0 {
			text := strings.TrimSpace(strings.Join(para, "\n"))
			if text != "" {
				current.paragraphs = append(current.paragraphs, text)
			}
			para = nil
		}
	}
	flushSection := func() {
		flushPara()
		if len(current.paragraphs) > 0 {
			sections = append(sections, current)
		}
	}

	for _, line := range strings.Split(normalizeNewlines(md), "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			para = append(para, line)
			if !inFence {
				flushPara()
			}
			continue
		}
		if inFence {
			para = append(para, line)
			continue
		}

		if level, text := parseHeading(line); level > 0 {
			flushSection()
			if level-1 < len(headings) {
				headings = headings[:level-1]
			}
			headings = append(headings, text)
			current = section{headings: slices.Clone(headings)}
			continue
		}

		if trimmed == "" {
			flushPara()
			continue
		}
		para = append(para, line)
	}
	flushSection()

	return sections
}

func (c *HybridChunker) packSection(s section) []Chunk {
	var chunks []Chunk
	var buf []string
	bufTokens := 0

	emit := func(text string, tokens int) {
		chunks = append(chunks, Chunk{
			Text:     text,
			Headings: s.headings,
			Tokens:   tokens,
		})
	}
	flush := func() {
		if len(buf) > 0 {
			emit(strings.Join(buf, "\n\n"), bufTokens)
			buf = nil
			bufTokens = 0
		}
	}

	for _, p := range s.paragraphs {
		tokens := CountTokens(p)

		if tokens > c.opts.MaxTokens {
			flush()
			words := strings.Fields(p)
			for start := 0; start < len(words); start += c.opts.MaxTokens {
				end := min(start+c.opts.MaxTokens, len(words))
				emit(strings.Join(words[start:end], " "), end-start)
			}
			continue
		}

		if bufTokens+tokens > c.opts.MaxTokens {
			flush()
		}
		buf = append(buf, p)
		bufTokens += tokens
	}
	flush()

	return chunks
}

// mergePeers folds a chunk into its predecessor when either is below
// MinTokens, both sit under the same headings and the sum fits.
func (c *HybridChunker) mergePeers(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}

	merged := []Chunk{chunks[0]}
	for _, ch := range chunks[1:] {
		prev := &merged[len(merged)-1]
		undersized := prev.Tokens < c.opts.MinTokens || ch.Tokens < c.opts.MinTokens
		if undersized && slices.Equal(prev.Headings, ch.Headings) && prev.Tokens+ch.Tokens <= c.opts.MaxTokens {
			prev.Text += "\n\n" + ch.Text
			prev.Tokens += ch.Tokens
			continue
		}
		merged = append(merged, ch)
	}
	return merged
}

// CountTokens approximates the token count of text by its word count.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
