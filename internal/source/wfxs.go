package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"novelhub/pkg/models"
)

// Wfxs scrapes m.wfxs.tw (traditional Chinese, mobile layout). Novel pages
// live at /xiaoshuo/<id>/, the chapter list under /booklist/<id>.html with
// numbered sub-pages, and chapter bodies inside <article>.
type Wfxs struct {
	Client  *http.Client
	Base    string
	Backoff []time.Duration
}

func NewWfxs(client *http.Client) *Wfxs {
	return &Wfxs{
		Client:  client,
		Base:    "https://m.wfxs.tw",
		Backoff: []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
	}
}

func (w *Wfxs) Name() string    { return "wfxs" }
func (w *Wfxs) BaseURL() string { return w.Base }

func (w *Wfxs) Supports(host string) bool {
	return host == "wfxs.tw" || strings.HasSuffix(host, ".wfxs.tw")
}

var (
	wfxsNovelHrefRe = regexp.MustCompile(`/xiaoshuo/(\d+)/`)
	wfxsNextPageRe  = regexp.MustCompile(`下一頁|下一页`)
)

func (w *Wfxs) SearchNovels(ctx context.Context, keyword string) ([]models.Novel, error) {
	q := url.Values{}
	q.Set("search", keyword)

	doc, err := fetchDOM(ctx, w.Client, w.Base+"/s/?"+q.Encode())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[source] wfxs search %q: %v", keyword, err)
		return nil, nil
	}

	var novels []models.Novel
	seen := make(map[string]bool)

	// titles are the /xiaoshuo/ links inside <h3>; the author sits in the
	// following <p> as "author | status"
	doc.Find("h3 > a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !strings.Contains(href, "/xiaoshuo/") {
			return
		}
		title := strings.TrimSpace(link.Text())
		if utf8.RuneCountInString(title) < 2 {
			return
		}
		novelURL := resolveURL(w.Base, href)
		if seen[novelURL] {
			return
		}
		seen[novelURL] = true

		author := "未知"
		if p := link.Parent().NextFiltered("p"); p.Length() > 0 {
			if text := strings.TrimSpace(p.Text()); strings.Contains(text, "|") {
				author = strings.TrimSpace(strings.SplitN(text, "|", 2)[0])
			}
		}

		novels = append(novels, models.Novel{
			Title:  title,
			Author: author,
			URL:    novelURL,
			Source: w.Name(),
		})
	})

	if len(novels) > maxSearchResults {
		novels = novels[:maxSearchResults]
	}
	return novels, nil
}

func (w *Wfxs) GetChapterList(ctx context.Context, novelURL string) ([]models.Chapter, error) {
	m := wfxsNovelHrefRe.FindStringSubmatch(novelURL)
	if m == nil {
		return nil, nil
	}
	novelID := m[1]

	listURL := fmt.Sprintf("%s/booklist/%s.html", w.Base, novelID)
	doc, err := fetchDOM(ctx, w.Client, listURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[source] wfxs chapter list %s: %v", novelURL, err)
		return nil, nil
	}

	// collect numbered sub-pages; when present they carry the full list and
	// the landing page only repeats the first chunk
	pageRe := regexp.MustCompile(`/booklist/` + novelID + `/(\d+)\.html`)
	type listPage struct {
		num int
		url string
	}
	var pages []listPage
	seenPages := make(map[int]bool)
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if pm := pageRe.FindStringSubmatch(href); pm != nil {
			if n, err := strconv.Atoi(pm[1]); err == nil && !seenPages[n] {
				seenPages[n] = true
				pages = append(pages, listPage{num: n, url: resolveURL(w.Base, href)})
			}
		}
	})
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	var chapters []models.Chapter
	if len(pages) == 0 {
		chapters = w.chaptersOnPage(doc, novelURL)
	} else {
		for _, p := range pages {
			pageDoc, err := fetchDOM(ctx, w.Client, p.url)
			if err != nil {
				log.Printf("[source] wfxs list page %d: %v", p.num, err)
				continue
			}
			chapters = append(chapters, w.chaptersOnPage(pageDoc, novelURL)...)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}

	return dedupeChapters(chapters), nil
}

// chaptersOnPage picks the <ul> holding the most 第…章 links (the real list)
// and filters out the 1~30章 range-navigation anchors.
func (w *Wfxs) chaptersOnPage(doc *goquery.Document, novelURL string) []models.Chapter {
	var bestUL *goquery.Selection
	bestCount := 0
	doc.Find("ul").Each(func(_ int, ul *goquery.Selection) {
		count := 0
		ul.Find("a").Each(func(_ int, link *goquery.Selection) {
			if wfxsIsChapterTitle(strings.TrimSpace(link.Text())) {
				count++
			}
		})
		if count > bestCount {
			bestCount = count
			bestUL = ul
		}
	})
	if bestUL == nil {
		return nil
	}

	var out []models.Chapter
	bestUL.Find("li a[href]").Each(func(_ int, link *goquery.Selection) {
		title := strings.TrimSpace(link.Text())
		if !wfxsIsChapterTitle(title) {
			return
		}
		href, _ := link.Attr("href")
		if href == "" {
			return
		}
		out = append(out, models.Chapter{
			NovelURL: novelURL,
			URL:      resolveURL(w.Base, href),
			Title:    title,
		})
	})
	return out
}

func wfxsIsChapterTitle(title string) bool {
	return strings.HasPrefix(title, "第") &&
		strings.Contains(title, "章") &&
		!strings.ContainsAny(title, "~～")
}

func (w *Wfxs) GetChapterContent(ctx context.Context, chapterURL string) (models.ChapterContent, error) {
	var lastErr error
	for attempt := 0; attempt <= len(w.Backoff); attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, w.Backoff[attempt-1]); err != nil {
				return models.ChapterContent{}, err
			}
		}

		cc, err := w.fetchContent(ctx, chapterURL)
		if err == nil {
			return cc, nil
		}
		if ctx.Err() != nil {
			return models.ChapterContent{}, ctx.Err()
		}
		lastErr = err
	}
	return models.ChapterContent{}, lastErr
}

func (w *Wfxs) fetchContent(ctx context.Context, chapterURL string) (models.ChapterContent, error) {
	doc, err := fetchDOM(ctx, w.Client, chapterURL)
	if err != nil {
		return models.ChapterContent{}, err
	}

	title := strings.TrimSpace(doc.Find("article h1").First().Text())
	if title == "" {
		title = pageTitle(doc, "章节内容")
	}

	content := w.articleText(doc)

	// single next-page follow (長章 split over two pages)
	if nextURL := w.nextPageURL(doc, chapterURL); nextURL != "" {
		if nextDoc, err := fetchDOM(ctx, w.Client, nextURL); err == nil {
			if more := w.articleText(nextDoc); more != "" {
				content += "\n\n" + more
			}
		}
	}

	content = cleanContent(content)
	if utf8.RuneCountInString(content) < minContentLen {
		return models.ChapterContent{}, &ValidationError{URL: chapterURL, Reason: "content too short"}
	}
	return models.ChapterContent{Title: title, Content: content}, nil
}

func (w *Wfxs) articleText(doc *goquery.Document) string {
	article := doc.Find("article").First()
	if article.Length() == 0 {
		return ""
	}
	var parts []string
	article.Find("p").Each(func(_ int, p *goquery.Selection) {
		t := strings.TrimSpace(p.Text())
		if t != "" {
			parts = append(parts, t)
		}
	})
	return stripNoiseLines(strings.Join(parts, "\n\n"))
}

func (w *Wfxs) nextPageURL(doc *goquery.Document, chapterURL string) string {
	next := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if wfxsNextPageRe.MatchString(strings.TrimSpace(link.Text())) {
			href, _ := link.Attr("href")
			next = resolveURL(chapterURL, href)
			return false
		}
		return true
	})
	if next == "" {
		doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			if strings.Contains(href, "/2.html") && strings.HasSuffix(href, ".html") {
				next = resolveURL(chapterURL, href)
				return false
			}
			return true
		})
	}
	if next == chapterURL {
		return ""
	}
	return next
}
