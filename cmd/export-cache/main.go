package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"novelhub/pkg/database"
)

// Exports the chapter index and a cache inventory as CSV, for backup or
// inspection of the local database.
func main() {
	var (
		chaptersOut = flag.String("chapters", "data/chapters.csv", "output CSV path for the chapter index")
		cacheOut    = flag.String("cache", "data/cache.csv", "output CSV path for the cache inventory")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := exportChapters(ctx, db, *chaptersOut); err != nil {
		log.Fatalf("export chapters failed: %v", err)
	}
	if err := exportCache(ctx, db, *cacheOut); err != nil {
		log.Fatalf("export cache failed: %v", err)
	}

	log.Printf("✅ exported chapters to %s and cache inventory to %s", *chaptersOut, *cacheOut)
}

func exportChapters(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"novel_url", "chapter_url", "title", "chapter_index", "is_user_inserted", "inserted_at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT novel_url, chapter_url, title, chapter_index, is_user_inserted, inserted_at
        FROM novel_chapters
        ORDER BY novel_url, chapter_index
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			novelURL     string
			chapterURL   string
			title        string
			chapterIndex int
			userInserted bool
			insertedAt   sql.NullTime
		)
		if err := rows.Scan(&novelURL, &chapterURL, &title, &chapterIndex, &userInserted, &insertedAt); err != nil {
			return err
		}

		inserted := ""
		if insertedAt.Valid {
			inserted = insertedAt.Time.Format(time.RFC3339)
		}

		if err := w.Write([]string{
			novelURL,
			chapterURL,
			title,
			strconv.Itoa(chapterIndex),
			strconv.FormatBool(userInserted),
			inserted,
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func exportCache(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"novel_url", "chapter_url", "title", "content_bytes", "cached_at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT novel_url, chapter_url, title, LENGTH(content), cached_at
        FROM chapter_cache
        ORDER BY novel_url, chapter_index
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			novelURL   string
			chapterURL string
			title      string
			size       sql.NullInt64
			cachedAt   sql.NullTime
		)
		if err := rows.Scan(&novelURL, &chapterURL, &title, &size, &cachedAt); err != nil {
			return err
		}

		bytes := ""
		if size.Valid {
			bytes = strconv.FormatInt(size.Int64, 10)
		}
		cached := ""
		if cachedAt.Valid {
			cached = cachedAt.Time.Format(time.RFC3339)
		}

		if err := w.Write([]string{novelURL, chapterURL, title, bytes, cached}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}
