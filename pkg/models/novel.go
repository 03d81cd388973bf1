package models

import "time"

// Novel is a search hit from a remote source. The canonical URL is the
// novel's identity everywhere in the system; title and author are only
// carried along for display.
type Novel struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// Chapter is one entry in a novel's reading order. ChapterIndex values for
// one novel are always unique, zero-based and contiguous. The chapter URL is
// the cache key; user-inserted chapters get a synthetic user:// URL.
type Chapter struct {
	NovelURL       string    `json:"novel_url,omitempty"`
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	ChapterIndex   int       `json:"chapter_index"`
	IsUserInserted bool      `json:"is_user_inserted"`
	IsCached       bool      `json:"is_cached"`
	InsertedAt     time.Time `json:"inserted_at,omitzero"`
}

// ChapterContent is a fetched chapter body.
type ChapterContent struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	FromCache bool   `json:"from_cache"`
}
