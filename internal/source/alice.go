package source

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"novelhub/pkg/models"
)

// Alice scrapes www.alicesw.com.
//
// The site serves a novel detail page at /novel/<id>.html, a dedicated
// chapter list at /other/chapters/id/<id>.html, and chapter pages at
// /book/<id>/<slug>.html with _2.html style pagination.
type Alice struct {
	Client  *http.Client
	Base    string
	Backoff []time.Duration
}

func NewAlice(client *http.Client) *Alice {
	return &Alice{
		Client:  client,
		Base:    "https://www.alicesw.com",
		Backoff: []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second},
	}
}

func (a *Alice) Name() string    { return "alice_sw" }
func (a *Alice) BaseURL() string { return a.Base }

func (a *Alice) Supports(host string) bool {
	return host == "alicesw.com" || strings.HasSuffix(host, ".alicesw.com")
}

var (
	aliceNovelHrefRe   = regexp.MustCompile(`/novel/(\d+)\.html`)
	aliceChapterHrefRe = regexp.MustCompile(`^/book/\d+/[^/]+\.html$`)
	aliceAuthorRe      = regexp.MustCompile(`作者[：:]\s*([^\n\r<>/,，、\[\]]+)`)
	aliceReadEntryRe   = regexp.MustCompile(`在线阅读|立即阅读|开始阅读|章节列表|全文阅读`)
	aliceNextPageRe    = regexp.MustCompile(`下一页|继续阅读|下页`)
	alicePageSuffixRe  = regexp.MustCompile(`_(\d+)\.html$`)
	alicePageTrimRe    = regexp.MustCompile(`(?:_\d+)?\.html$`)
)

func (a *Alice) SearchNovels(ctx context.Context, keyword string) ([]models.Novel, error) {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("f", "_all")
	q.Set("sort", "relevance")

	doc, err := fetchDOM(ctx, a.Client, a.Base+"/search.html?"+q.Encode())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[source] alice search %q: %v", keyword, err)
		return nil, nil
	}

	var novels []models.Novel
	seenTitles := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !aliceNovelHrefRe.MatchString(href) {
			return
		}
		title := strings.TrimSpace(link.Text())
		if utf8.RuneCountInString(title) <= 1 || seenTitles[title] {
			return
		}

		author := "未知"
		if m := aliceAuthorRe.FindStringSubmatch(link.Parent().Text()); m != nil {
			author = strings.TrimSpace(m[1])
		}

		seenTitles[title] = true
		novels = append(novels, models.Novel{
			Title:  title,
			Author: author,
			URL:    resolveURL(a.Base, href),
			Source: a.Name(),
		})
	})

	if len(novels) > maxSearchResults {
		novels = novels[:maxSearchResults]
	}
	return novels, nil
}

// GetChapterList tries an ordered chain of strategies: the dedicated
// chapter-list sub-page derived from the novel id, then the "read now"
// entry page linked from the detail page, then an anchor scan of the detail
// page itself. Each strategy runs only if the previous found nothing.
func (a *Alice) GetChapterList(ctx context.Context, novelURL string) ([]models.Chapter, error) {
	detail, err := fetchDOM(ctx, a.Client, novelURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[source] alice chapter list %s: %v", novelURL, err)
		return nil, nil
	}

	var chapters []models.Chapter

	// 1) dedicated chapter-list page
	if m := aliceNovelHrefRe.FindStringSubmatch(novelURL); m != nil {
		listURL := a.Base + "/other/chapters/id/" + m[1] + ".html"
		if doc, err := fetchDOM(ctx, a.Client, listURL); err == nil {
			chapters = a.chapterAnchors(doc, novelURL)
		}
	}

	// 2) "read now" entry page
	if len(chapters) == 0 {
		entryHref := ""
		detail.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			if aliceReadEntryRe.MatchString(strings.TrimSpace(link.Text())) {
				entryHref, _ = link.Attr("href")
				return false
			}
			return true
		})
		if entryHref != "" {
			readURL := resolveURL(novelURL, entryHref)
			if doc, err := fetchDOM(ctx, a.Client, readURL); err == nil {
				chapters = a.chapterAnchors(doc, novelURL)
			}
		}
	}

	// 3) anchor scan of the detail page
	if len(chapters) == 0 {
		chapters = a.chapterAnchors(detail, novelURL)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return dedupeChapters(chapters), nil
}

// chapterAnchors pulls real chapter links (/book/<id>/<slug>.html) out of a
// page, filtered through the navigation skip-list and the chapter-title
// heuristic.
func (a *Alice) chapterAnchors(doc *goquery.Document, novelURL string) []models.Chapter {
	var out []models.Chapter
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !aliceChapterHrefRe.MatchString(href) {
			return
		}
		title := strings.TrimSpace(link.Text())
		if isSkippedTitle(title) || !looksLikeChapterTitle(title) {
			return
		}
		out = append(out, models.Chapter{
			NovelURL: novelURL,
			URL:      resolveURL(a.Base, href),
			Title:    title,
		})
	})
	return out
}

func (a *Alice) GetChapterContent(ctx context.Context, chapterURL string) (models.ChapterContent, error) {
	var lastErr error
	for attempt := 0; attempt <= len(a.Backoff); attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, a.Backoff[attempt-1]); err != nil {
				return models.ChapterContent{}, err
			}
		}

		cc, err := a.fetchContent(ctx, chapterURL)
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

func (a *Alice) fetchContent(ctx context.Context, chapterURL string) (models.ChapterContent, error) {
	doc, err := fetchDOM(ctx, a.Client, chapterURL)
	if err != nil {
		return models.ChapterContent{}, err
	}

	title := pageTitle(doc, "章节内容")
	content := paragraphText(doc.Selection, 5)

	// Follow same-chapter pagination (slug.html -> slug_2.html), bounded so
	// a broken next-link ring cannot loop forever.
	visited := map[string]bool{chapterURL: true}
	current := doc
	currentURL := chapterURL
	for page := 0; page < 5; page++ {
		nextURL := a.nextPageURL(current, currentURL)
		if nextURL == "" || visited[nextURL] {
			break
		}
		if alicePageTrimRe.ReplaceAllString(nextURL, "") != alicePageTrimRe.ReplaceAllString(chapterURL, "") {
			break
		}
		nextDoc, err := fetchDOM(ctx, a.Client, nextURL)
		if err != nil {
			break
		}
		if more := paragraphText(nextDoc.Selection, 3); more != "" {
			content += "\n" + stripNoiseLines(more)
		}
		visited[nextURL] = true
		current = nextDoc
		currentURL = nextURL
	}

	content = cleanContent(stripNoiseLines(content))
	if utf8.RuneCountInString(content) < minContentLen {
		return models.ChapterContent{}, &ValidationError{URL: chapterURL, Reason: "content too short"}
	}
	return models.ChapterContent{Title: title, Content: content}, nil
}

// nextPageURL finds the next pagination link, by anchor text first and by
// the _N.html suffix convention as a fallback (smallest page number wins).
func (a *Alice) nextPageURL(doc *goquery.Document, pageURL string) string {
	next := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if aliceNextPageRe.MatchString(strings.TrimSpace(link.Text())) {
			href, _ := link.Attr("href")
			next = resolveURL(pageURL, href)
			return false
		}
		return true
	})
	if next != "" {
		return next
	}

	basePrefix := alicePageTrimRe.ReplaceAllString(pageURL, "")
	bestPage := 0
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		full := resolveURL(pageURL, href)
		m := alicePageSuffixRe.FindStringSubmatch(full)
		if m == nil || !strings.HasPrefix(full, basePrefix) {
			return
		}
		n := 0
		for _, r := range m[1] {
			n = n*10 + int(r-'0')
		}
		if n > 1 && (bestPage == 0 || n < bestPage) {
			bestPage = n
			next = full
		}
	})
	return next
}
