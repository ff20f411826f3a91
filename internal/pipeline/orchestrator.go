// Package pipeline orchestrates one document's journey from raw bytes to a
// structured job posting: classify, then extract, under quota governance.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/classifier"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/extractor"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/metrics"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/quota"
)

// State is the orchestrator's position in the stage sequence. The sequence
// is an explicit machine rather than nested conditionals because failure
// attribution depends on always knowing the exact state at failure time.
type State string

// Orchestrator states. FAILED is terminal and reachable from CLASSIFYING or
// EXTRACTING.
const (
	StateReceived    State = "RECEIVED"
	StateClassifying State = "CLASSIFYING"
	StateExtracting  State = "EXTRACTING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Classifier produces plain text from document bytes.
type Classifier interface {
	Classify(ctx context.Context, data []byte) (classifier.Classification, error)
}

// Engine runs schema extraction against a provider.
type Engine interface {
	Extract(ctx context.Context, text string, scanned bool, p extractor.Provider) (extractor.Extraction, error)
}

// Governor arbitrates provider call budgets.
type Governor interface {
	Reserve(provider string) error
	Check(provider string) quota.Health
}

// Hasher digests document bytes for log correlation.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Result is the outcome envelope returned to the caller. It always carries
// either populated job fields (success) or a populated failure stage: never
// both, never neither.
type Result struct {
	Success        bool                  `json:"success"`
	Data           *extractor.JobPosting `json:"data,omitempty"`
	Error          string                `json:"error,omitempty"`
	Stage          Stage                 `json:"stage,omitempty"`
	Code           FailureCode           `json:"code,omitempty"`
	IsScanned      bool                  `json:"isScanned"`
	Warnings       []string              `json:"warnings"`
	Confidence     float64               `json:"confidence"`
	DocumentSHA256 string                `json:"documentSha256,omitempty"`
}

// Pipeline wires the stages together. One Run processes one document; many
// runs may execute concurrently, sharing only the governor's counters.
type Pipeline struct {
	classifier Classifier
	engine     Engine
	governor   Governor
	providers  map[string]extractor.Provider
	hasher     Hasher
	ids        IDGenerator
	logger     *zap.Logger
}

// New builds a Pipeline over the configured providers.
func New(
	cls Classifier,
	engine Engine,
	governor Governor,
	providers map[string]extractor.Provider,
	hasher Hasher,
	ids IDGenerator,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		classifier: cls,
		engine:     engine,
		governor:   governor,
		providers:  providers,
		hasher:     hasher,
		ids:        ids,
		logger:     logger,
	}
}

// Run processes one document end to end. Every failure comes back as a
// structured, stage-tagged result; nothing escapes as a panic or opaque
// error. The pipeline never retries internally: retry policy belongs to the
// caller, which can use the QUOTA_EXCEEDED code to decide.
func (p *Pipeline) Run(ctx context.Context, document []byte, providerName string) (res Result) {
	runID, err := p.ids.NewID()
	if err != nil {
		runID = "unknown"
	}
	log := p.logger.With(
		zap.String("run_id", runID),
		zap.String("provider", providerName),
	)

	state := StateReceived
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline panic recovered", zap.String("state", string(state)), zap.Any("panic", rec))
			res = p.fail(log, stageOf(state), codeOf(state), fmt.Errorf("internal error in state %s: %v", state, rec), Result{})
		}
	}()

	var (
		cls  classifier.Classification
		ext  extractor.Extraction
		hash string
	)

	for {
		switch state {
		case StateReceived:
			if len(document) == 0 {
				return p.fail(log, StageClassify, CodeClassifyFailure,
					errors.New("empty document"), Result{})
			}
			if h, err := p.hasher.Hash(document); err == nil {
				hash = h
			}
			log.Info("document received", zap.Int("bytes", len(document)), zap.String("sha256", hash))
			state = StateClassifying

		case StateClassifying:
			c, err := p.classifier.Classify(ctx, document)
			if err != nil {
				return p.fail(log, StageClassify, CodeClassifyFailure, err,
					Result{DocumentSHA256: hash})
			}
			cls = c
			log.Info("document classified",
				zap.Bool("scanned", cls.IsScanned),
				zap.Int("pages", cls.PageCount),
			)
			state = StateExtracting

		case StateExtracting:
			partial := Result{IsScanned: cls.IsScanned, DocumentSHA256: hash}

			// A caller that has gone away must not consume provider quota.
			if err := ctx.Err(); err != nil {
				return p.fail(log, StageExtract, CodeProviderUnavailable,
					fmt.Errorf("run aborted before provider call: %w", err), partial)
			}

			provider, ok := p.providers[providerName]
			if !ok {
				return p.fail(log, StageExtract, CodeConfigFailure,
					fmt.Errorf("provider %q is not configured or has no credential", providerName), partial)
			}

			if err := p.governor.Reserve(providerName); err != nil {
				code := CodeQuotaExceeded
				if errors.Is(err, quota.ErrUnknownProvider) {
					code = CodeConfigFailure
				}
				return p.fail(log, StageExtract, code, err, partial)
			}

			x, err := p.engine.Extract(ctx, cls.Text, cls.IsScanned, provider)
			if err != nil {
				metrics.ObserveProviderCall(providerName, "error")
				return p.fail(log, StageExtract, extractCode(err), err, partial)
			}
			metrics.ObserveProviderCall(providerName, "ok")
			ext = x
			state = StateDone

		case StateDone:
			metrics.ObservePipelineRun(string(StageExtract), "done")
			log.Info("pipeline run complete",
				zap.Float64("confidence", ext.Confidence),
				zap.Bool("scanned", cls.IsScanned),
			)
			return Result{
				Success:        true,
				Data:           &ext.Posting,
				IsScanned:      cls.IsScanned,
				Warnings:       ext.Warnings,
				Confidence:     ext.Confidence,
				DocumentSHA256: hash,
			}

		default:
			// Unreachable: every state above either advances or returns.
			return p.fail(log, stageOf(state), codeOf(state),
				fmt.Errorf("orchestrator entered unknown state %q", state), Result{DocumentSHA256: hash})
		}
	}
}

// fail converts a stage error into the failure half of the envelope.
func (p *Pipeline) fail(log *zap.Logger, stage Stage, code FailureCode, err error, partial Result) Result {
	stageErr := &StageError{Stage: stage, Code: code, Err: err}
	log.Warn("pipeline run failed",
		zap.String("stage", string(stage)),
		zap.String("code", string(code)),
		zap.Error(err),
	)
	metrics.ObservePipelineRun(string(stage), "failed")

	warnings := []string{}
	if errors.Is(err, context.DeadlineExceeded) {
		warnings = append(warnings, string(stage)+" stage timed out")
	}
	if Retryable(code) {
		warnings = append(warnings, "quota exhausted; retry after the per-minute window clears")
	}

	return Result{
		Success:        false,
		Error:          stageErr.Error(),
		Stage:          stage,
		Code:           code,
		IsScanned:      partial.IsScanned,
		Warnings:       warnings,
		Confidence:     0,
		DocumentSHA256: partial.DocumentSHA256,
	}
}

func extractCode(err error) FailureCode {
	if errors.Is(err, extractor.ErrSchema) {
		return CodeExtractSchema
	}
	return CodeProviderUnavailable
}

// stageOf and codeOf attribute an unexpected failure to the stage that was
// live when it happened, so an extraction-side crash never reads as a
// classification problem.
func stageOf(state State) Stage {
	if state == StateExtracting {
		return StageExtract
	}
	return StageClassify
}

func codeOf(state State) FailureCode {
	if state == StateExtracting {
		return CodeProviderUnavailable
	}
	return CodeClassifyFailure
}
