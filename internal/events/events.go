// ABOUTME: Event types for ingestion runs: progress updates and article arrivals
// ABOUTME: Progress events supersede per feed; article-arrived events are never dropped

package events

import "github.com/harper/skim/internal/models"

// Status is the run state carried by a progress event.
type Status int

const (
	StatusStarted Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress describes the state of one feed's ingestion run. A later Progress
// for the same feed supersedes an earlier one: consumers only care about the
// latest. Total is nil until the entry count is known.
type Progress struct {
	FeedID       string
	FeedTitle    string
	Processed    int
	Total        *int
	CurrentTitle string
	Status       Status
	Reason       string // failure reason; set only when Status is StatusFailed
}

// ArticleArrived announces one newly inserted article. Unlike Progress these
// are never superseded; every instance is delivered to each subscriber.
type ArticleArrived struct {
	FeedID  string
	Article *models.Article
}
