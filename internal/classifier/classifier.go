// Package classifier decides whether a notification document is
// machine-readable text or a scanned image, and produces plain text either
// way. Scanned documents are routed through OCR instead of the direct
// extraction path.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// defaultMinCharsPerPage is the text-density floor below which a PDF is
// treated as image-only. Digitally typeset notices run to thousands of
// characters per page; a near-zero density is an unambiguous scan signal.
const defaultMinCharsPerPage = 50

// Classification is the outcome of routing one document.
type Classification struct {
	Text         string
	IsScanned    bool
	PageCount    int
	CharsPerPage float64
}

// TextExtractor pulls text straight out of the document container format.
type TextExtractor interface {
	Extract(data []byte) (PDFText, error)
}

// OCRClient recognizes text in a scanned document.
type OCRClient interface {
	Recognize(ctx context.Context, data []byte) (string, error)
}

// Config controls classification thresholds.
type Config struct {
	// MinCharsPerPage is the extractable-character density below which a
	// document is classified as scanned.
	MinCharsPerPage float64
}

// Classifier routes documents between direct extraction and OCR.
type Classifier struct {
	pdf    TextExtractor
	ocr    OCRClient
	cfg    Config
	logger *zap.Logger
}

// New builds a Classifier.
func New(pdf TextExtractor, ocr OCRClient, cfg Config, logger *zap.Logger) *Classifier {
	if cfg.MinCharsPerPage <= 0 {
		cfg.MinCharsPerPage = defaultMinCharsPerPage
	}
	return &Classifier{pdf: pdf, ocr: ocr, cfg: cfg, logger: logger}
}

// Classify extracts plain text from the document, falling back to OCR when
// the direct path yields too little text. OCR failures are surfaced as
// errors rather than empty text: an empty-but-successful OCR result would
// let the extraction engine hallucinate fields from nothing.
func (c *Classifier) Classify(ctx context.Context, data []byte) (Classification, error) {
	ext, err := c.pdf.Extract(data)
	if err != nil {
		return Classification{}, fmt.Errorf("read document: %w", err)
	}

	if ext.CharsPerPage >= c.cfg.MinCharsPerPage {
		return Classification{
			Text:         ext.Text,
			IsScanned:    false,
			PageCount:    ext.PageCount,
			CharsPerPage: ext.CharsPerPage,
		}, nil
	}

	c.logger.Info("document classified as scanned",
		zap.Int("pages", ext.PageCount),
		zap.Float64("chars_per_page", ext.CharsPerPage),
	)

	if c.ocr == nil {
		return Classification{}, fmt.Errorf("document is scanned (%d pages, %.1f chars/page) but no ocr backend is configured", ext.PageCount, ext.CharsPerPage)
	}

	text, err := c.ocr.Recognize(ctx, data)
	if err != nil {
		return Classification{}, fmt.Errorf("ocr pass: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Classification{}, fmt.Errorf("ocr produced no text for %d-page document", ext.PageCount)
	}

	return Classification{
		Text:         text,
		IsScanned:    true,
		PageCount:    ext.PageCount,
		CharsPerPage: ext.CharsPerPage,
	}, nil
}
