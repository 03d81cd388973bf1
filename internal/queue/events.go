package queue

import "time"

// Event types pushed to progress subscribers.
const (
	EventCacheProgress = "cache.progress"
	EventCacheDone     = "cache.done"
)

// ProgressEvent is the wire payload broadcast after every chapter a cache
// task finishes, and once more when the task completes. Counts are
// recomputed from persisted state, so a restart resumes at the true
// position instead of an optimistic counter.
type ProgressEvent struct {
	Type           string    `json:"type"`
	TaskID         string    `json:"task_id"`
	NovelURL       string    `json:"novel_url"`
	NovelTitle     string    `json:"novel_title,omitempty"`
	CachedChapters int       `json:"cached_chapters"`
	TotalChapters  int       `json:"total_chapters"`
	At             time.Time `json:"at"`
}

// Publisher receives progress events. The broadcast hub implements it; a
// no-op publisher is fine for one-shot tools.
type Publisher interface {
	Publish(ev ProgressEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(ProgressEvent) {}
