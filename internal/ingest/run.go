// ABOUTME: Fetch-parse pipeline and the failure taxonomy for ingestion runs
// ABOUTME: A RunError classifies why a run failed so callers can react per cause

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harper/skim/internal/fetch"
	"github.com/harper/skim/internal/models"
	"github.com/harper/skim/internal/parse"
)

// FailureKind is the category of a failed ingestion run.
type FailureKind int

const (
	FailureUnreachable FailureKind = iota
	FailureTimeout
	FailureMalformed
	FailureStorage
	FailureCancelled
)

func (k FailureKind) String() string {
	switch k {
	case FailureUnreachable:
		return "unreachable"
	case FailureTimeout:
		return "timeout"
	case FailureMalformed:
		return "malformed"
	case FailureStorage:
		return "storage"
	case FailureCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RunError wraps the cause of a failed run with its category.
type RunError struct {
	Kind FailureKind
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// classify maps an error from any run stage onto the failure taxonomy.
func classify(err error) *RunError {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr
	}
	kind := FailureStorage
	switch {
	case errors.Is(err, context.Canceled):
		kind = FailureCancelled
	case errors.Is(err, fetch.ErrTimeout):
		kind = FailureTimeout
	case errors.Is(err, fetch.ErrUnreachable):
		kind = FailureUnreachable
	case errors.Is(err, parse.ErrMalformed):
		kind = FailureMalformed
	}
	return &RunError{Kind: kind, Err: err}
}

// PipelineResult is the outcome of one fetch-parse pass over a feed source.
// When NotModified is true the remaining fields are empty.
type PipelineResult struct {
	Feed         *parse.ParsedFeed
	ETag         string
	LastModified string
	NotModified  bool
}

// Pipeline turns a registered feed into parsed entries. The orchestrator
// only depends on this interface so runs can be driven without a network.
type Pipeline interface {
	Run(ctx context.Context, feed *models.Feed) (*PipelineResult, error)
}

// DefaultFetchTimeout bounds one fetch-parse pass when no timeout is configured.
const DefaultFetchTimeout = 30 * time.Second

// FeedPipeline is the production Pipeline: conditional HTTP fetch followed
// by RSS/Atom parsing.
type FeedPipeline struct {
	Timeout time.Duration
}

// NewFeedPipeline creates a pipeline with the given per-run fetch timeout.
// A zero timeout falls back to DefaultFetchTimeout.
func NewFeedPipeline(timeout time.Duration) *FeedPipeline {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &FeedPipeline{Timeout: timeout}
}

func (p *FeedPipeline) Run(ctx context.Context, feed *models.Feed) (*PipelineResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	res, err := fetch.Fetch(ctx, feed.URL, feed.ETag, feed.LastModified)
	if err != nil {
		return nil, err
	}
	if res.NotModified {
		return &PipelineResult{NotModified: true}, nil
	}

	parsed, err := parse.Parse(res.Body)
	if err != nil {
		return nil, err
	}

	return &PipelineResult{
		Feed:         parsed,
		ETag:         res.ETag,
		LastModified: res.LastModified,
	}, nil
}
