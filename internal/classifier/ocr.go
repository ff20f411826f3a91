package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPOCR recognizes scanned documents through a sidecar OCR service that
// accepts raw PDF bytes and responds with recognized text.
type HTTPOCR struct {
	endpoint string
	client   *http.Client
}

// NewHTTPOCR builds an OCR client against the given endpoint. The timeout
// bounds the whole recognition call; OCR on a long scan can take a while but
// must never hang the pipeline.
func NewHTTPOCR(endpoint string, timeout time.Duration) *HTTPOCR {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPOCR{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type ocrResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Recognize submits the document to the OCR service and returns its text.
func (o *HTTPOCR) Recognize(ctx context.Context, data []byte) (string, error) {
	if o.endpoint == "" {
		return "", fmt.Errorf("ocr endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr service returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out ocrResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ocr service error: %s", out.Error)
	}
	return out.Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
