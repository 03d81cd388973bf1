package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelhub/internal/store"
	"novelhub/pkg/database"
	"novelhub/pkg/models"
)

const novelURL = "https://www.alicesw.com/novel/42.html"

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return store.New(db)
}

func remote(title, url string) models.Chapter {
	return models.Chapter{NovelURL: novelURL, URL: url, Title: title}
}

func requireContiguous(t *testing.T, chapters []models.Chapter) {
	t.Helper()
	for i, ch := range chapters {
		require.Equal(t, i, ch.ChapterIndex, "chapter %q has index %d at position %d", ch.Title, ch.ChapterIndex, i)
	}
}

func TestMergeRemoteChapters_AssignsZeroBasedIndices(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	merged, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{
		remote("第一章", "https://www.alicesw.com/book/42/a.html"),
		remote("第二章", "https://www.alicesw.com/book/42/b.html"),
		remote("第三章", "https://www.alicesw.com/book/42/c.html"),
	})
	require.NoError(t, err)
	require.Len(t, merged, 3)
	requireContiguous(t, merged)
	assert.Equal(t, 0, merged[0].ChapterIndex)
	assert.Equal(t, "第一章", merged[0].Title)
}

func TestInsertUserChapter_FirstChapterGetsIndexZero(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	// user path on an empty novel
	ch, err := st.InsertUserChapter(ctx, novelURL, "外传", "自写内容", 7)
	require.NoError(t, err)
	assert.Equal(t, 0, ch.ChapterIndex, "insert into an empty list clamps to 0")
	assert.True(t, ch.IsUserInserted)

	// remote path on a second, empty novel
	other := "https://www.alicesw.com/novel/43.html"
	merged, err := st.MergeRemoteChapters(ctx, other, []models.Chapter{
		{NovelURL: other, URL: "https://www.alicesw.com/book/43/a.html", Title: "第一章"},
	})
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, 0, merged[0].ChapterIndex)
}

func TestInsertUserChapter_ShiftsFollowingChapters(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{
		remote("A", "https://www.alicesw.com/book/42/a.html"),
		remote("B", "https://www.alicesw.com/book/42/b.html"),
		remote("C", "https://www.alicesw.com/book/42/c.html"),
	})
	require.NoError(t, err)

	ch, err := st.InsertUserChapter(ctx, novelURL, "X", "body", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.ChapterIndex)

	chapters, err := st.Chapters(ctx, novelURL)
	require.NoError(t, err)
	require.Len(t, chapters, 4)
	requireContiguous(t, chapters)

	titles := []string{chapters[0].Title, chapters[1].Title, chapters[2].Title, chapters[3].Title}
	assert.Equal(t, []string{"A", "X", "B", "C"}, titles)
}

func TestInsertUserChapter_ClampsIndex(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{
		remote("A", "https://www.alicesw.com/book/42/a.html"),
	})
	require.NoError(t, err)

	low, err := st.InsertUserChapter(ctx, novelURL, "head", "", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, low.ChapterIndex)

	high, err := st.InsertUserChapter(ctx, novelURL, "tail", "", 99)
	require.NoError(t, err)
	assert.Equal(t, 2, high.ChapterIndex)

	chapters, err := st.Chapters(ctx, novelURL)
	require.NoError(t, err)
	requireContiguous(t, chapters)
}

// A user chapter inserted between remote chapters keeps its slot when the
// site list is re-synced with extra chapters appended.
func TestMergeRemoteChapters_UserChapterSurvivesResync(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a := "https://www.alicesw.com/book/42/a.html"
	b := "https://www.alicesw.com/book/42/b.html"
	c := "https://www.alicesw.com/book/42/c.html"
	d := "https://www.alicesw.com/book/42/d.html"

	_, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{
		remote("A", a), remote("B", b), remote("C", c),
	})
	require.NoError(t, err)

	// A, B, X, C
	_, err = st.InsertUserChapter(ctx, novelURL, "X", "my chapter", 2)
	require.NoError(t, err)

	// re-sync discovers A, B, C, D
	merged, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{
		remote("A", a), remote("B", b), remote("C", c), remote("D", d),
	})
	require.NoError(t, err)
	require.Len(t, merged, 5)
	requireContiguous(t, merged)

	titles := make([]string, len(merged))
	for i, ch := range merged {
		titles[i] = ch.Title
	}
	assert.Equal(t, []string{"A", "B", "X", "C", "D"}, titles)
	assert.True(t, merged[2].IsUserInserted)
	assert.True(t, merged[2].IsCached, "user chapter content rides through the merge")
}

// When the remote predecessor of a user chapter disappears, the user
// chapter re-anchors after the nearest surviving earlier remote chapter.
func TestMergeRemoteChapters_ReanchorsAfterRemovedPredecessor(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a := "https://www.alicesw.com/book/42/a.html"
	b := "https://www.alicesw.com/book/42/b.html"
	c := "https://www.alicesw.com/book/42/c.html"

	_, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{
		remote("A", a), remote("B", b), remote("C", c),
	})
	require.NoError(t, err)

	// A, B, X, C
	_, err = st.InsertUserChapter(ctx, novelURL, "X", "", 2)
	require.NoError(t, err)

	// B vanished upstream
	merged, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{
		remote("A", a), remote("C", c),
	})
	require.NoError(t, err)
	requireContiguous(t, merged)

	titles := make([]string, len(merged))
	for i, ch := range merged {
		titles[i] = ch.Title
	}
	assert.Equal(t, []string{"A", "X", "C"}, titles)
}

func TestMergeRemoteChapters_UserChapterAtHeadWhenNoPredecessorSurvives(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a := "https://www.alicesw.com/book/42/a.html"
	b := "https://www.alicesw.com/book/42/b.html"

	_, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{remote("A", a)})
	require.NoError(t, err)
	_, err = st.InsertUserChapter(ctx, novelURL, "X", "", 0)
	require.NoError(t, err)

	merged, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{remote("B", b)})
	require.NoError(t, err)
	requireContiguous(t, merged)

	require.Len(t, merged, 2)
	assert.Equal(t, "X", merged[0].Title)
	assert.Equal(t, "B", merged[1].Title)
}

// Re-syncing an unchanged list keeps cached content: the cache is keyed by
// chapter URL, not by index.
func TestMergeRemoteChapters_CacheSurvivesResync(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a := "https://www.alicesw.com/book/42/a.html"
	merged, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{remote("A", a)})
	require.NoError(t, err)

	require.NoError(t, st.CacheChapterContent(ctx, novelURL, merged[0], "正文"))

	merged, err = st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{remote("A", a)})
	require.NoError(t, err)
	assert.True(t, merged[0].IsCached)

	cc, ok, err := st.CachedContent(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "正文", cc.Content)
	assert.True(t, cc.FromCache)
}

func TestCacheChapterContent_UpsertIsIdempotent(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a := "https://www.alicesw.com/book/42/a.html"
	merged, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{remote("A", a)})
	require.NoError(t, err)

	require.NoError(t, st.CacheChapterContent(ctx, novelURL, merged[0], "v1"))
	require.NoError(t, st.CacheChapterContent(ctx, novelURL, merged[0], "v2"))

	cc, ok, err := st.CachedContent(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", cc.Content, "re-caching replaces, never duplicates")

	cached, total, err := st.CacheCounts(ctx, novelURL)
	require.NoError(t, err)
	assert.Equal(t, 1, cached)
	assert.Equal(t, 1, total)
}

func TestDeleteUserChapter_ClosesIndexGap(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{
		remote("A", "https://www.alicesw.com/book/42/a.html"),
		remote("B", "https://www.alicesw.com/book/42/b.html"),
	})
	require.NoError(t, err)

	ch, err := st.InsertUserChapter(ctx, novelURL, "X", "body", 1)
	require.NoError(t, err)

	require.NoError(t, st.DeleteUserChapter(ctx, ch.URL))

	chapters, err := st.Chapters(ctx, novelURL)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	requireContiguous(t, chapters)

	cached, _, err := st.CacheCounts(ctx, novelURL)
	require.NoError(t, err)
	assert.Equal(t, 0, cached, "deleting the chapter drops its cached body")
}

func TestDeleteUserChapter_RejectsRemoteChapters(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a := "https://www.alicesw.com/book/42/a.html"
	_, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{remote("A", a)})
	require.NoError(t, err)

	assert.Error(t, st.DeleteUserChapter(ctx, a))
}

func TestUpdateUserChapterContent(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	ch, err := st.InsertUserChapter(ctx, novelURL, "X", "v1", 0)
	require.NoError(t, err)

	require.NoError(t, st.UpdateUserChapterContent(ctx, ch.URL, "v2"))

	cc, ok, err := st.CachedContent(ctx, ch.URL)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", cc.Content)

	a := "https://www.alicesw.com/book/42/a.html"
	_, err = st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{remote("A", a)})
	require.NoError(t, err)
	assert.Error(t, st.UpdateUserChapterContent(ctx, a, "nope"))
}

func TestClearNovelCache_KeepsUserChapters(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a := "https://www.alicesw.com/book/42/a.html"
	b := "https://www.alicesw.com/book/42/b.html"
	merged, err := st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{
		remote("A", a), remote("B", b),
	})
	require.NoError(t, err)
	require.NoError(t, st.CacheChapterContent(ctx, novelURL, merged[0], "remote body"))

	user, err := st.InsertUserChapter(ctx, novelURL, "X", "mine", 1)
	require.NoError(t, err)

	require.NoError(t, st.ClearNovelCache(ctx, novelURL))

	chapters, err := st.Chapters(ctx, novelURL)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	requireContiguous(t, chapters)
	assert.Equal(t, user.URL, chapters[0].URL)
	assert.True(t, chapters[0].IsCached, "user content survives a cache clear")

	_, ok, err := st.CachedContent(ctx, a)
	require.NoError(t, err)
	assert.False(t, ok, "remote cache rows are gone")
}

func TestFindChapter(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	missing, err := st.FindChapter(ctx, "https://www.alicesw.com/book/42/zzz.html")
	require.NoError(t, err)
	assert.Nil(t, missing)

	a := "https://www.alicesw.com/book/42/a.html"
	_, err = st.MergeRemoteChapters(ctx, novelURL, []models.Chapter{remote("A", a)})
	require.NoError(t, err)

	found, err := st.FindChapter(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, novelURL, found.NovelURL)
	assert.Equal(t, 0, found.ChapterIndex)
}
