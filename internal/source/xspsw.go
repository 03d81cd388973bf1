package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"novelhub/pkg/models"
)

// Xspsw scrapes m.xspsw.com. Novel pages live at /xianshishuwu_<id>.html,
// the chapter list is paged under /xianshishuwu/<id>/ (about 100 chapters a
// page), and chapter pages at /xianshishuwu/<id>/<n>.html.
type Xspsw struct {
	Client  *http.Client
	Base    string
	Backoff []time.Duration
	// PageDelay spaces out chapter-list page fetches.
	PageDelay time.Duration
}

func NewXspsw(client *http.Client) *Xspsw {
	return &Xspsw{
		Client:    client,
		Base:      "https://m.xspsw.com",
		Backoff:   []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
		PageDelay: 500 * time.Millisecond,
	}
}

func (x *Xspsw) Name() string    { return "xspsw" }
func (x *Xspsw) BaseURL() string { return x.Base }

func (x *Xspsw) Supports(host string) bool {
	return host == "xspsw.com" || strings.HasSuffix(host, ".xspsw.com")
}

var (
	xspswNovelHrefRe   = regexp.MustCompile(`/xianshishuwu_(\d+)\.html`)
	xspswChapterHrefRe = regexp.MustCompile(`/xianshishuwu/\d+/\d+\.html`)
	xspswListPageRe    = regexp.MustCompile(`/xianshishuwu/\d+/0_(\d+)\.html`)
	xspswTotalRe       = regexp.MustCompile(`共\s*(\d+)\s*章`)
	xspswAuthorRe      = regexp.MustCompile(`作者[：:]\s*(\S+)`)
)

// Content container candidates, most specific first.
var xspswContentSelectors = []string{
	"div#content",
	"div.content",
	"div.txt",
	"div#chapter_content",
	`div[class*="content"]`,
	`div[class*="txt"]`,
}

func (x *Xspsw) SearchNovels(ctx context.Context, keyword string) ([]models.Novel, error) {
	form := url.Values{}
	form.Set("searchkey", strings.TrimSpace(keyword))

	doc, err := postFormDOM(ctx, x.Client, x.Base+"/search.html", form)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[source] xspsw search %q: %v", keyword, err)
		return nil, nil
	}

	var novels []models.Novel
	seen := make(map[string]bool)

	doc.Find("li").Each(func(_ int, item *goquery.Selection) {
		link := item.Find("a").First()
		href, _ := link.Attr("href")
		if !strings.HasPrefix(href, "/xianshishuwu_") {
			return
		}

		// the anchor text is often empty; the cover image alt carries the title
		title := strings.TrimSpace(item.Find("img").First().AttrOr("alt", ""))
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		if utf8.RuneCountInString(title) < 2 || isSkippedTitle(title) {
			return
		}

		novelURL := resolveURL(x.Base, href)
		if seen[novelURL] {
			return
		}
		seen[novelURL] = true

		author := "未知"
		if m := xspswAuthorRe.FindStringSubmatch(item.Text()); m != nil {
			author = m[1]
		}

		novels = append(novels, models.Novel{
			Title:  title,
			Author: author,
			URL:    novelURL,
			Source: x.Name(),
		})
	})

	if len(novels) > maxSearchResults {
		novels = novels[:maxSearchResults]
	}
	return novels, nil
}

func (x *Xspsw) GetChapterList(ctx context.Context, novelURL string) ([]models.Chapter, error) {
	m := xspswNovelHrefRe.FindStringSubmatch(novelURL)
	if m == nil {
		return nil, nil
	}
	novelID := m[1]

	firstPage := fmt.Sprintf("%s/xianshishuwu/%s/", x.Base, novelID)
	doc, err := fetchDOM(ctx, x.Client, firstPage)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[source] xspsw chapter list %s: %v", novelURL, err)
		return nil, nil
	}

	maxPage := 1
	if tm := xspswTotalRe.FindStringSubmatch(doc.Text()); tm != nil {
		if total, err := strconv.Atoi(tm[1]); err == nil {
			maxPage = (total + 99) / 100
		}
	}
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if pm := xspswListPageRe.FindStringSubmatch(href); pm != nil {
			if n, err := strconv.Atoi(pm[1]); err == nil && n > maxPage {
				maxPage = n
			}
		}
	})

	var chapters []models.Chapter
	chapters = append(chapters, x.chaptersOnPage(doc, novelURL)...)

	for page := 2; page <= maxPage; page++ {
		if err := sleepBackoff(ctx, x.PageDelay); err != nil {
			return nil, err
		}
		pageURL := fmt.Sprintf("%s/xianshishuwu/%s/0_%d.html", x.Base, novelID, page)
		pageDoc, err := fetchDOM(ctx, x.Client, pageURL)
		if err != nil {
			// one broken page should not lose the rest of the list
			log.Printf("[source] xspsw list page %d: %v", page, err)
			continue
		}
		chapters = append(chapters, x.chaptersOnPage(pageDoc, novelURL)...)
	}

	return dedupeChapters(chapters), nil
}

func (x *Xspsw) chaptersOnPage(doc *goquery.Document, novelURL string) []models.Chapter {
	var out []models.Chapter
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !xspswChapterHrefRe.MatchString(href) || xspswListPageRe.MatchString(href) {
			return
		}
		title := strings.TrimSpace(link.Text())
		if utf8.RuneCountInString(title) <= 1 {
			return
		}
		out = append(out, models.Chapter{
			NovelURL: novelURL,
			URL:      resolveURL(x.Base, href),
			Title:    title,
		})
	})
	return out
}

func (x *Xspsw) GetChapterContent(ctx context.Context, chapterURL string) (models.ChapterContent, error) {
	var lastErr error
	for attempt := 0; attempt <= len(x.Backoff); attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, x.Backoff[attempt-1]); err != nil {
				return models.ChapterContent{}, err
			}
		}

		cc, err := x.fetchContent(ctx, chapterURL)
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

func (x *Xspsw) fetchContent(ctx context.Context, chapterURL string) (models.ChapterContent, error) {
	doc, err := fetchDOM(ctx, x.Client, chapterURL)
	if err != nil {
		return models.ChapterContent{}, err
	}

	title := pageTitle(doc, "章节内容")

	content := extractBySelectors(doc, xspswContentSelectors, minContentLen)
	if content == "" {
		// no recognizable container: take the dominant text block
		content = largestBlockText(doc, 500)
	}

	content = cleanContent(stripNoiseLines(content))
	if utf8.RuneCountInString(content) < minContentLen {
		return models.ChapterContent{}, &ValidationError{URL: chapterURL, Reason: "content too short"}
	}
	return models.ChapterContent{Title: title, Content: content}, nil
}
