package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"novelhub/internal/novel"
	"novelhub/internal/source"
	"novelhub/internal/store"
	"novelhub/pkg/database"
	"novelhub/pkg/utils"
)

// One-shot crawler: search every site for a keyword, or cache a whole novel
// into the local database, without running the API server.
func main() {
	keyword := flag.String("search", "", "search keyword across all sites")
	novelURL := flag.String("cache", "", "novel URL to cache fully")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	if (*keyword == "") == (*novelURL == "") {
		log.Fatal("exactly one of -search or -cache is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	client := source.NewHTTPClient(30 * time.Second)
	registry := source.NewRegistry(
		source.NewAlice(client),
		source.NewXspsw(client),
		source.NewWfxs(client),
	)
	st := store.New(db)

	if *keyword != "" {
		svc := novel.NewService(registry, st)
		novels, err := svc.Search(ctx, *keyword)
		if err != nil {
			log.Fatalf("search failed: %v", err)
		}
		for _, n := range novels {
			fmt.Printf("%-10s %-30s %-20s %s\n", n.Source, n.Title, n.Author, n.URL)
		}
		log.Printf("found %d novels", len(novels))
		return
	}

	src := registry.Resolve(*novelURL)
	log.Printf("caching %s via %s", *novelURL, src.Name())

	discovered, err := src.GetChapterList(ctx, *novelURL)
	if err != nil {
		log.Fatalf("chapter list failed: %v", err)
	}
	chapters, err := st.MergeRemoteChapters(ctx, *novelURL, discovered)
	if err != nil {
		log.Fatalf("merge failed: %v", err)
	}
	log.Printf("chapters: %d", len(chapters))

	interval := utils.LoadQueueConfig().FetchInterval
	limiter := source.NewLimiter(interval)
	cachedNow := 0
	for _, ch := range chapters {
		cached, err := st.IsChapterCached(ctx, ch.URL)
		if err != nil {
			log.Fatalf("cache check failed: %v", err)
		}
		if cached || ch.IsUserInserted {
			continue
		}
		if err := limiter.Acquire(ctx); err != nil {
			log.Fatalf("interrupted: %v", err)
		}
		cc, err := src.GetChapterContent(ctx, ch.URL)
		if err != nil {
			log.Printf("skip %q: %v", ch.Title, err)
			continue
		}
		if err := st.CacheChapterContent(ctx, *novelURL, ch, cc.Content); err != nil {
			log.Fatalf("persist failed: %v", err)
		}
		cachedNow++
	}

	cached, total, err := st.CacheCounts(ctx, *novelURL)
	if err != nil {
		log.Fatalf("counts failed: %v", err)
	}
	log.Printf("done: %d newly cached, %d/%d total", cachedNow, cached, total)
}
