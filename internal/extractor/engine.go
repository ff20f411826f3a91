package extractor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// defaultMaxInputChars bounds the text sent to a provider. Notification
// bodies beyond this are almost all annexures and boilerplate.
const defaultMaxInputChars = 20000

// extractionPrompt is the fixed schema contract shared by every provider.
const extractionPrompt = `You are a data extraction agent for official government job notifications.
Analyze the notification text below and extract structured data.

INSTRUCTIONS:
1. Ignore page headers, footers, annexure tables and office addresses.
2. Extract the fields strictly from the text. If a field is absent, set it to null. Never guess.
3. Output valid JSON only. Do not wrap the output in markdown code blocks.

OUTPUT SCHEMA:
{
  "title": "posting title, e.g. 'Combined Graduate Level Examination 2026'",
  "organization": "issuing body, e.g. 'Staff Selection Commission'",
  "category": "one of: central, state, bank, railway, defence, teaching, police, other",
  "short_description": "2-3 sentence summary of the posting",
  "vacancy_count": total advertised vacancies as a number,
  "fees": {"general": "...", "sc_st": "...", "...": "application fee per category"},
  "eligibility": {"education": "...", "age_limit": "...", "...": "eligibility criteria"},
  "dates": {"notification_date": "...", "apply_start": "...", "apply_last_date": "...", "exam_date": "..."}
}

NOTIFICATION TEXT:
%s`

// Config controls engine behavior.
type Config struct {
	MaxInputChars int
}

// Extraction is the engine's successful outcome: the structured posting, the
// engine-computed confidence, and data-quality warnings in the order they
// were detected.
type Extraction struct {
	Posting    JobPosting
	Confidence float64
	Warnings   []string
}

// Engine runs the schema-in/schema-out extraction contract against any
// Provider. Provider choice is configuration, never a property of the
// document.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine builds an Engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = defaultMaxInputChars
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Extract prompts the provider with the notification text and parses the
// response. Schema-invalid responses are rejected with ErrSchema rather than
// returned as partially-typed garbage.
func (e *Engine) Extract(ctx context.Context, text string, scanned bool, p Provider) (Extraction, error) {
	input := text
	if len(input) > e.cfg.MaxInputChars {
		// Back off to a rune boundary so Devanagari and other multi-byte
		// text is never cut mid-rune.
		cut := e.cfg.MaxInputChars
		for cut > 0 && !utf8.RuneStart(input[cut]) {
			cut--
		}
		input = input[:cut]
	}

	raw, err := p.Complete(ctx, fmt.Sprintf(extractionPrompt, input))
	if err != nil {
		return Extraction{}, fmt.Errorf("provider %s: %w", p.Name(), err)
	}

	posting, err := parseResponse(raw)
	if err != nil {
		e.logger.Warn("schema validation rejected provider response",
			zap.String("provider", p.Name()),
			zap.Int("response_len", len(raw)),
			zap.Error(err),
		)
		return Extraction{}, err
	}

	warnings := []string{}
	for _, field := range missingFields(posting) {
		warnings = append(warnings, "field not found in document: "+field)
	}
	if scanned {
		// OCR text is noisier than digital text; consumers should trust the
		// result less even at the same nominal confidence.
		warnings = append(warnings, "source document was scanned; fields were extracted from OCR text and need manual verification")
	}

	score := confidence(posting)
	e.logger.Info("extraction complete",
		zap.String("provider", p.Name()),
		zap.String("confidence", strconv.FormatFloat(score, 'f', 2, 64)),
		zap.Int("warnings", len(warnings)),
	)

	return Extraction{
		Posting:    posting,
		Confidence: score,
		Warnings:   warnings,
	}, nil
}

// Slugify derives a URL-safe slug from a posting title. Slugs are the
// human-reviewable upsert key for finalized job records; operators may
// override them before publication.
func Slugify(title string) string {
	var sb strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				sb.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}
