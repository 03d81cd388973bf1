package novel

import (
	"context"
	"fmt"
	"log"
	"sync"

	"novelhub/internal/source"
	"novelhub/internal/store"
	"novelhub/pkg/models"
)

// Service ties the adapter registry to the chapter store: search fans out
// across sites, chapter lists are served from persisted state and merged on
// refresh, and chapter bodies come from the cache unless a refresh forces a
// fetch.
type Service struct {
	Registry *source.Registry
	Store    *store.Store
}

func NewService(reg *source.Registry, st *store.Store) *Service {
	return &Service{Registry: reg, Store: st}
}

// Search queries every registered adapter concurrently and concatenates the
// results, deduplicated by (title, url). A failing site contributes nothing
// but never sinks the other sites' results.
func (s *Service) Search(ctx context.Context, keyword string) ([]models.Novel, error) {
	sources := s.Registry.Sources()

	type result struct {
		order  int
		novels []models.Novel
	}
	results := make(chan result, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(order int, src source.Source) {
			defer wg.Done()
			novels, err := src.SearchNovels(ctx, keyword)
			if err != nil {
				log.Printf("[novel] search %s %q: %v", src.Name(), keyword, err)
				return
			}
			results <- result{order: order, novels: novels}
		}(i, src)
	}
	wg.Wait()
	close(results)

	byOrder := make([][]models.Novel, len(sources))
	for r := range results {
		byOrder[r.order] = r.novels
	}

	var out []models.Novel
	seen := make(map[string]bool)
	for _, novels := range byOrder {
		for _, n := range novels {
			if n.Author == "" {
				n.Author = "未知"
			}
			key := n.Title + "\x00" + n.URL
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, n)
		}
	}
	return out, ctx.Err()
}

// ListChapters serves the persisted chapter list when one exists. An empty
// store, or forceRefresh, triggers discovery through the matching adapter
// followed by the consistency-preserving merge, so user-inserted chapters
// and cached content survive every re-sync.
func (s *Service) ListChapters(ctx context.Context, novelURL string, forceRefresh bool) ([]models.Chapter, error) {
	if !forceRefresh {
		chapters, err := s.Store.Chapters(ctx, novelURL)
		if err != nil {
			return nil, err
		}
		if len(chapters) > 0 {
			return chapters, nil
		}
	}

	src := s.Registry.Resolve(novelURL)
	discovered, err := src.GetChapterList(ctx, novelURL)
	if err != nil {
		return nil, fmt.Errorf("discover chapters via %s: %w", src.Name(), err)
	}
	if len(discovered) == 0 {
		// nothing discovered: keep whatever the store already has
		return s.Store.Chapters(ctx, novelURL)
	}
	return s.Store.MergeRemoteChapters(ctx, novelURL, discovered)
}

// GetContent returns a chapter body, preferring the cache. forceRefresh
// bypasses the cache and overwrites it with a fresh fetch. The body is only
// persisted when the chapter is already known to the store, so a one-off
// read of an untracked URL does not grow the cache.
func (s *Service) GetContent(ctx context.Context, chapterURL string, forceRefresh bool) (models.ChapterContent, error) {
	if !forceRefresh {
		if cc, ok, err := s.Store.CachedContent(ctx, chapterURL); err != nil {
			return models.ChapterContent{}, err
		} else if ok {
			return cc, nil
		}
	}

	if store.IsUserChapterURL(chapterURL) {
		// user chapters exist only in the cache; nothing upstream to fetch
		cc, ok, err := s.Store.CachedContent(ctx, chapterURL)
		if err != nil {
			return models.ChapterContent{}, err
		}
		if !ok {
			return models.ChapterContent{}, fmt.Errorf("chapter %s: no cached content", chapterURL)
		}
		return cc, nil
	}

	src := s.Registry.Resolve(chapterURL)
	cc, err := src.GetChapterContent(ctx, chapterURL)
	if err != nil {
		return models.ChapterContent{}, err
	}

	if ch, err := s.Store.FindChapter(ctx, chapterURL); err != nil {
		log.Printf("[novel] lookup %s: %v", chapterURL, err)
	} else if ch != nil {
		if err := s.Store.CacheChapterContent(ctx, ch.NovelURL, *ch, cc.Content); err != nil {
			log.Printf("[novel] cache %s: %v", chapterURL, err)
		}
	}
	return cc, nil
}
