package converter

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/0xcro3dile/lecturerag/internal/domain/entities"
)

// PDFTextConverter extracts the embedded text layer of a PDF. Scanned
// pages come out empty and no images are produced.
type PDFTextConverter struct{}

// NewPDFTextConverter creates the in-process converter.
func NewPDFTextConverter() *PDFTextConverter {
	return &PDFTextConverter{}
}

// Warmup is a no-op; there is nothing to load.
func (c *PDFTextConverter) Warmup(ctx context.Context) error { return nil }

// Convert renders every non-empty page as a Markdown section.
func (c *PDFTextConverter) Convert(ctx context.Context, path string) (rendered *entities.Rendered, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			rendered, err = nil, fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	fonts := make(map[string]*pdf.Font)
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}

		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "## Page %d\n\n%s\n\n", i, text)
	}

	return &entities.Rendered{
		Markdown: norm.NFC.String(sb.String()),
		Images:   map[string]any{},
	}, nil
}
