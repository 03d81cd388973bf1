package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"novelhub/pkg/models"
)

// Store is the persistent relation between a novel, its discovered chapters,
// their cached content and any user-inserted chapters. It owns the
// index-assignment/merge algorithm: within one novel, chapter_index values
// are always unique, zero-based and contiguous after every operation here.
type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// UserChapterURL mints the synthetic cache key for a locally authored
// chapter. User chapters have no remote URL; giving them one keeps the
// URL-keyed cache and the merge uniform.
func UserChapterURL() string {
	return "user://" + uuid.NewString()
}

// IsUserChapterURL reports whether url names a locally authored chapter.
func IsUserChapterURL(url string) bool {
	return strings.HasPrefix(url, "user://")
}

// Chapters returns the persisted chapters of a novel in reading order, with
// IsCached derived from the content cache.
func (s *Store) Chapters(ctx context.Context, novelURL string) ([]models.Chapter, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT nc.novel_url, nc.chapter_url, nc.title, nc.chapter_index,
		       nc.is_user_inserted, nc.inserted_at,
		       cc.chapter_url IS NOT NULL
		FROM novel_chapters nc
		LEFT JOIN chapter_cache cc ON cc.chapter_url = nc.chapter_url
		WHERE nc.novel_url = ?
		ORDER BY nc.chapter_index ASC
	`, novelURL)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	var out []models.Chapter
	for rows.Next() {
		var ch models.Chapter
		if err := rows.Scan(
			&ch.NovelURL, &ch.URL, &ch.Title, &ch.ChapterIndex,
			&ch.IsUserInserted, &ch.InsertedAt, &ch.IsCached,
		); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// FindChapter returns the persisted row for one chapter URL, or nil.
func (s *Store) FindChapter(ctx context.Context, chapterURL string) (*models.Chapter, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT nc.novel_url, nc.chapter_url, nc.title, nc.chapter_index,
		       nc.is_user_inserted, nc.inserted_at,
		       cc.chapter_url IS NOT NULL
		FROM novel_chapters nc
		LEFT JOIN chapter_cache cc ON cc.chapter_url = nc.chapter_url
		WHERE nc.chapter_url = ?
	`, chapterURL)

	var ch models.Chapter
	if err := row.Scan(
		&ch.NovelURL, &ch.URL, &ch.Title, &ch.ChapterIndex,
		&ch.IsUserInserted, &ch.InsertedAt, &ch.IsCached,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan chapter: %w", err)
	}
	return &ch, nil
}

// MergeRemoteChapters reconciles a fresh remote discovery with persisted
// state:
//
//  1. existing remote-origin rows are superseded by the fresh list, but
//     their cached content survives because the cache is keyed by URL;
//  2. user-inserted rows are kept, re-anchored immediately after the nearest
//     preceding remote chapter that is still present (or at the head when
//     none survives), preserving their relative order;
//  3. the merged sequence is renumbered zero-based and persisted.
//
// Returns the merged chapter list in final order.
func (s *Store) MergeRemoteChapters(ctx context.Context, novelURL string, discovered []models.Chapter) ([]models.Chapter, error) {
	existing, err := s.Chapters(ctx, novelURL)
	if err != nil {
		return nil, err
	}

	fresh := make(map[string]bool, len(discovered))
	for _, ch := range discovered {
		fresh[ch.URL] = true
	}

	// anchor each user chapter to the last remote chapter before it that
	// survives the re-sync; "" anchors to the head of the list
	anchored := make(map[string][]models.Chapter)
	lastSurvivor := ""
	for _, ch := range existing {
		if ch.IsUserInserted {
			anchored[lastSurvivor] = append(anchored[lastSurvivor], ch)
			continue
		}
		if fresh[ch.URL] {
			lastSurvivor = ch.URL
		}
	}

	merged := make([]models.Chapter, 0, len(existing)+len(discovered))
	merged = append(merged, anchored[""]...)
	seen := make(map[string]bool, len(discovered))
	for _, ch := range discovered {
		if seen[ch.URL] {
			continue
		}
		seen[ch.URL] = true
		ch.NovelURL = novelURL
		ch.IsUserInserted = false
		merged = append(merged, ch)
		merged = append(merged, anchored[ch.URL]...)
	}

	for i := range merged {
		merged[i].ChapterIndex = i
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM novel_chapters WHERE novel_url = ?`, novelURL); err != nil {
		return nil, fmt.Errorf("clear chapter rows: %w", err)
	}

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO novel_chapters
			(novel_url, chapter_url, title, chapter_index, is_user_inserted, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range merged {
		insertedAt := ch.InsertedAt
		if insertedAt.IsZero() {
			insertedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			novelURL, ch.URL, ch.Title, ch.ChapterIndex, ch.IsUserInserted, insertedAt,
		); err != nil {
			return nil, fmt.Errorf("insert chapter %s: %w", ch.URL, err)
		}
		// keep the cache's index column in step with the new ordering
		if _, err := tx.ExecContext(ctx,
			`UPDATE chapter_cache SET chapter_index = ? WHERE chapter_url = ?`,
			ch.ChapterIndex, ch.URL,
		); err != nil {
			return nil, fmt.Errorf("reindex cache %s: %w", ch.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge: %w", err)
	}

	return s.Chapters(ctx, novelURL)
}

// InsertUserChapter writes a locally authored chapter at insertIndex,
// shifting every existing row at or after that index by +1. An empty
// chapter list always produces chapter_index = 0, the same as the first
// remotely discovered chapter would get.
func (s *Store) InsertUserChapter(ctx context.Context, novelURL, title, content string, insertIndex int) (models.Chapter, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Chapter{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM novel_chapters WHERE novel_url = ?`, novelURL,
	).Scan(&count); err != nil {
		return models.Chapter{}, fmt.Errorf("count chapters: %w", err)
	}

	if insertIndex < 0 {
		insertIndex = 0
	}
	if insertIndex > count {
		insertIndex = count
	}

	if count > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE novel_chapters SET chapter_index = chapter_index + 1
			WHERE novel_url = ? AND chapter_index >= ?
		`, novelURL, insertIndex); err != nil {
			return models.Chapter{}, fmt.Errorf("shift chapters: %w", err)
		}
	}

	ch := models.Chapter{
		NovelURL:       novelURL,
		URL:            UserChapterURL(),
		Title:          title,
		ChapterIndex:   insertIndex,
		IsUserInserted: true,
		InsertedAt:     time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO novel_chapters
			(novel_url, chapter_url, title, chapter_index, is_user_inserted, inserted_at)
		VALUES (?, ?, ?, ?, 1, ?)
	`, novelURL, ch.URL, ch.Title, ch.ChapterIndex, ch.InsertedAt); err != nil {
		return models.Chapter{}, fmt.Errorf("insert user chapter: %w", err)
	}

	if content != "" {
		if err := upsertCache(ctx, tx, novelURL, ch.URL, ch.Title, content, ch.ChapterIndex); err != nil {
			return models.Chapter{}, err
		}
		ch.IsCached = true
	}

	if err := tx.Commit(); err != nil {
		return models.Chapter{}, fmt.Errorf("commit insert: %w", err)
	}
	return ch, nil
}

// DeleteUserChapter removes a user-inserted chapter and its cached content,
// then closes the index gap. Remote-origin chapters cannot be deleted here.
func (s *Store) DeleteUserChapter(ctx context.Context, chapterURL string) error {
	ch, err := s.FindChapter(ctx, chapterURL)
	if err != nil {
		return err
	}
	if ch == nil {
		return fmt.Errorf("chapter %s: not found", chapterURL)
	}
	if !ch.IsUserInserted {
		return fmt.Errorf("chapter %s: not user-inserted", chapterURL)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM novel_chapters WHERE chapter_url = ?`, chapterURL); err != nil {
		return fmt.Errorf("delete chapter row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chapter_cache WHERE chapter_url = ?`, chapterURL); err != nil {
		return fmt.Errorf("delete cache row: %w", err)
	}
	if err := renumber(ctx, tx, ch.NovelURL); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// UpdateUserChapterContent replaces the body of a user-authored chapter.
// Remote chapters only change through an explicit force refresh.
func (s *Store) UpdateUserChapterContent(ctx context.Context, chapterURL, content string) error {
	ch, err := s.FindChapter(ctx, chapterURL)
	if err != nil {
		return err
	}
	if ch == nil {
		return fmt.Errorf("chapter %s: not found", chapterURL)
	}
	if !ch.IsUserInserted {
		return fmt.Errorf("chapter %s: not user-inserted", chapterURL)
	}
	return s.CacheChapterContent(ctx, ch.NovelURL, *ch, content)
}

// IsChapterCached reports whether content for the exact URL is cached.
func (s *Store) IsChapterCached(ctx context.Context, chapterURL string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM chapter_cache WHERE chapter_url = ?`, chapterURL,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query cache: %w", err)
	}
	return true, nil
}

// CachedContent returns the cached body for a chapter URL, if any.
func (s *Store) CachedContent(ctx context.Context, chapterURL string) (models.ChapterContent, bool, error) {
	var cc models.ChapterContent
	err := s.DB.QueryRowContext(ctx,
		`SELECT title, content FROM chapter_cache WHERE chapter_url = ?`, chapterURL,
	).Scan(&cc.Title, &cc.Content)
	if err == sql.ErrNoRows {
		return models.ChapterContent{}, false, nil
	}
	if err != nil {
		return models.ChapterContent{}, false, fmt.Errorf("query cached content: %w", err)
	}
	cc.FromCache = true
	return cc, true, nil
}

// CacheChapterContent upserts a chapter body keyed by chapter URL. Caching
// the same chapter twice replaces the row instead of duplicating it.
func (s *Store) CacheChapterContent(ctx context.Context, novelURL string, ch models.Chapter, content string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertCache(ctx, tx, novelURL, ch.URL, ch.Title, content, ch.ChapterIndex); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache: %w", err)
	}
	return nil
}

func upsertCache(ctx context.Context, tx *sql.Tx, novelURL, chapterURL, title, content string, index int) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chapter_cache (novel_url, chapter_url, title, content, chapter_index, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chapter_url) DO UPDATE SET
		  novel_url = excluded.novel_url,
		  title = excluded.title,
		  content = excluded.content,
		  chapter_index = excluded.chapter_index,
		  cached_at = excluded.cached_at
	`, novelURL, chapterURL, title, content, index, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert cache %s: %w", chapterURL, err)
	}
	return nil
}

// ClearNovelCache drops cached content and remote-origin chapter rows for a
// novel. User-inserted chapters and their content are never removed; the
// survivors are renumbered from zero.
func (s *Store) ClearNovelCache(ctx context.Context, novelURL string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chapter_cache
		WHERE novel_url = ? AND chapter_url IN (
			SELECT chapter_url FROM novel_chapters
			WHERE novel_url = ? AND is_user_inserted = 0
		)
	`, novelURL, novelURL); err != nil {
		return fmt.Errorf("clear cache rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM novel_chapters WHERE novel_url = ? AND is_user_inserted = 0
	`, novelURL); err != nil {
		return fmt.Errorf("clear chapter rows: %w", err)
	}
	if err := renumber(ctx, tx, novelURL); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// CacheCounts recomputes (cachedChapters, totalChapters) from persisted
// state; progress is never stored redundantly.
func (s *Store) CacheCounts(ctx context.Context, novelURL string) (cached, total int, err error) {
	err = s.DB.QueryRowContext(ctx, `
		SELECT
		  COUNT(cc.chapter_url),
		  COUNT(*)
		FROM novel_chapters nc
		LEFT JOIN chapter_cache cc ON cc.chapter_url = nc.chapter_url
		WHERE nc.novel_url = ?
	`, novelURL).Scan(&cached, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("count cache: %w", err)
	}
	return cached, total, nil
}

// renumber rewrites chapter_index as a dense zero-based sequence in the
// current order, inside the caller's transaction.
func renumber(ctx context.Context, tx *sql.Tx, novelURL string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT chapter_url FROM novel_chapters
		WHERE novel_url = ? ORDER BY chapter_index ASC
	`, novelURL)
	if err != nil {
		return fmt.Errorf("query order: %w", err)
	}
	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return fmt.Errorf("scan order: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for i, u := range urls {
		if _, err := tx.ExecContext(ctx, `
			UPDATE novel_chapters SET chapter_index = ?
			WHERE novel_url = ? AND chapter_url = ?
		`, i, novelURL, u); err != nil {
			return fmt.Errorf("renumber %s: %w", u, err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE chapter_cache SET chapter_index = ? WHERE chapter_url = ?
		`, i, u); err != nil {
			return fmt.Errorf("renumber cache %s: %w", u, err)
		}
	}
	return nil
}
