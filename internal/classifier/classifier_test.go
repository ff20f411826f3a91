package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubExtractor struct {
	out PDFText
	err error
}

func (s stubExtractor) Extract(_ []byte) (PDFText, error) { return s.out, s.err }

type stubOCR struct {
	text   string
	err    error
	called bool
}

func (s *stubOCR) Recognize(_ context.Context, _ []byte) (string, error) {
	s.called = true
	return s.text, s.err
}

func TestClassify_TextDocumentSkipsOCR(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("recruitment notice ", 50)
	ocr := &stubOCR{text: "should not be used"}
	c := New(stubExtractor{out: PDFText{Text: body, PageCount: 2, CharsPerPage: 475}}, ocr, Config{}, zap.NewNop())

	got, err := c.Classify(context.Background(), []byte("pdf"))
	require.NoError(t, err)
	require.False(t, got.IsScanned)
	require.Equal(t, body, got.Text)
	require.Equal(t, 2, got.PageCount)
	require.False(t, ocr.called, "text documents must not consume OCR")
}

func TestClassify_LowDensityRoutesToOCR(t *testing.T) {
	t.Parallel()

	ocr := &stubOCR{text: "OCR recovered notification text"}
	c := New(stubExtractor{out: PDFText{Text: "", PageCount: 3, CharsPerPage: 0}}, ocr, Config{}, zap.NewNop())

	got, err := c.Classify(context.Background(), []byte("pdf"))
	require.NoError(t, err)
	require.True(t, got.IsScanned)
	require.Equal(t, "OCR recovered notification text", got.Text)
	require.Equal(t, 3, got.PageCount)
	require.True(t, ocr.called)
}

func TestClassify_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	// Exactly at the threshold counts as machine-readable.
	ocr := &stubOCR{}
	c := New(stubExtractor{out: PDFText{Text: "x", PageCount: 1, CharsPerPage: 50}}, ocr, Config{MinCharsPerPage: 50}, zap.NewNop())

	got, err := c.Classify(context.Background(), []byte("pdf"))
	require.NoError(t, err)
	require.False(t, got.IsScanned)
	require.False(t, ocr.called)
}

func TestClassify_CorruptContainerFails(t *testing.T) {
	t.Parallel()

	c := New(stubExtractor{err: errors.New("pdfcpu read: xref broken")}, &stubOCR{}, Config{}, zap.NewNop())

	_, err := c.Classify(context.Background(), []byte("not a pdf"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "read document")
}

func TestClassify_ScannedWithoutOCRBackend(t *testing.T) {
	t.Parallel()

	// Deployments without an OCR endpoint still classify text documents;
	// a scanned document must come back as a clean error, not a panic.
	c := New(stubExtractor{out: PDFText{PageCount: 3, CharsPerPage: 0}}, nil, Config{}, zap.NewNop())

	require.NotPanics(t, func() {
		_, err := c.Classify(context.Background(), []byte("pdf"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "no ocr backend")
	})
}

func TestClassify_TextDocumentWithoutOCRBackend(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("recruitment notice ", 50)
	c := New(stubExtractor{out: PDFText{Text: body, PageCount: 1, CharsPerPage: 950}}, nil, Config{}, zap.NewNop())

	got, err := c.Classify(context.Background(), []byte("pdf"))
	require.NoError(t, err)
	require.False(t, got.IsScanned)
}

func TestClassify_OCRFailureIsAnError(t *testing.T) {
	t.Parallel()

	c := New(
		stubExtractor{out: PDFText{PageCount: 1}},
		&stubOCR{err: errors.New("service down")},
		Config{}, zap.NewNop(),
	)

	_, err := c.Classify(context.Background(), []byte("pdf"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "ocr pass")
}

func TestClassify_EmptyOCRTextIsAnError(t *testing.T) {
	t.Parallel()

	// An empty-but-successful OCR result must not reach extraction.
	c := New(
		stubExtractor{out: PDFText{PageCount: 4}},
		&stubOCR{text: "   \n "},
		Config{}, zap.NewNop(),
	)

	_, err := c.Classify(context.Background(), []byte("pdf"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no text")
}
