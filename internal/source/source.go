package source

import (
	"context"

	"novelhub/pkg/models"
)

// Source is implemented by each external novel site. Each source fetches its
// own markup and maps it into the shared chapter model.
//
// SearchNovels and GetChapterList are advisory: transport and parse failures
// degrade to an empty slice so callers can fan out across sources.
// GetChapterContent retries with a per-source backoff table and surfaces the
// failure after the final attempt.
type Source interface {
	Name() string
	BaseURL() string
	Supports(host string) bool
	SearchNovels(ctx context.Context, keyword string) ([]models.Novel, error)
	GetChapterList(ctx context.Context, novelURL string) ([]models.Chapter, error)
	GetChapterContent(ctx context.Context, chapterURL string) (models.ChapterContent, error)
}

// minContentLen is the smallest extraction (in runes) accepted as a chapter
// body; anything shorter is treated as a failed extraction.
const minContentLen = 100

// maxSearchResults bounds the cost of a single search call.
const maxSearchResults = 20
