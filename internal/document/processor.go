package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubev2v/doc-processor/pkg/docconv"
)

// Converter turns a document location into markdown and chunks.
type Converter interface {
	Convert(ctx context.Context, source string) (*docconv.Result, error)
}

// Processor writes the conversion artifacts of a document. It keeps no
// state between calls.
type Processor struct {
	converter Converter
	log       *zap.SugaredLogger
}

func NewProcessor(converter Converter) *Processor {
	return &Processor{
		converter: converter,
		log:       zap.S().Named("document_processor"),
	}
}

// Stats describe one successful conversion.
type Stats struct {
	Format docconv.Format
	Chunks int
}

// ProcessDocument converts inputPath and writes the chunk texts as a JSON
// array to chunksPath and the markdown rendering to markdownPath. Neither
// target is touched unless the conversion and both writes succeed.
func (p *Processor) ProcessDocument(ctx context.Context, inputPath, chunksPath, markdownPath string) (*Stats, error) {
	p.log.Infow("loading document", "input", inputPath)

	res, err := p.converter.Convert(ctx, inputPath)
	if err != nil {
		p.log.Errorw("error processing document", "input", inputPath, "error", err)
		return nil, fmt.Errorf("failed to convert %s: %w", inputPath, err)
	}

	chunks, err := encodeChunks(res.Texts())
	if err != nil {
		p.log.Errorw("error processing document", "input", inputPath, "error", err)
		return nil, fmt.Errorf("failed to encode chunks of %s: %w", inputPath, err)
	}

	if err := writePair(chunksPath, chunks, markdownPath, []byte(res.Markdown)); err != nil {
		p.log.Errorw("error processing document", "input", inputPath, "error", err)
		return nil, err
	}

	p.log.Infow("document processed", "input", inputPath, "format", res.Format, "chunks", len(res.Chunks))

	return &Stats{Format: res.Format, Chunks: len(res.Chunks)}, nil
}

// encodeChunks renders texts as an indented JSON array without escaping
// non-ASCII or HTML characters.
func encodeChunks(texts []string) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(texts); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// writePair stages both files next to their targets and renames them into
// place. If the second rename fails the first target is removed again.
func writePair(firstPath string, first []byte, secondPath string, second []byte) error {
	firstTmp, err := writeTemp(firstPath, first)
	if err != nil {
		return err
	}
	secondTmp, err := writeTemp(secondPath, second)
	if err != nil {
		_ = os.Remove(firstTmp)
		return err
	}

	if err := os.Rename(firstTmp, firstPath); err != nil {
		_ = os.Remove(firstTmp)
		_ = os.Remove(secondTmp)
		return fmt.Errorf("failed to move %s into place: %w", firstPath, err)
	}
	if err := os.Rename(secondTmp, secondPath); err != nil {
		_ = os.Remove(secondTmp)
		_ = os.Remove(firstPath)
		return fmt.Errorf("failed to move %s into place: %w", secondPath, err)
	}
	return nil
}

func writeTemp(target string, data []byte) (string, error) {
	tmp := filepath.Join(filepath.Dir(target), fmt.Sprintf(".%s.%s.tmp", filepath.Base(target), uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return tmp, nil
}
