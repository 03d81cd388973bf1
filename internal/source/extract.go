package source

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"novelhub/pkg/models"
)

// Chapter-title markers: arabic or CJK numerals after 第, or the usual
// volume/section/prologue/finale words.
var chapterTitleRe = regexp.MustCompile(`第\s*[0-9０-９]+|第[一二三四五六七八九十百千万]+|章|节|節|卷|楔子|序章|终章|終章|大结局|大結局`)

// Navigation/boilerplate anchors that show up inside chapter containers.
var skipTitleWords = []string{
	"首页", "分类", "排行", "书架", "書架", "加入书签", "最新章节",
	"小说", "文章", "科幻", "武侠", "网游", "同人",
	"下一页", "上一页", "更多", "登录", "注册",
}

// Lines stripped out of extracted chapter bodies.
var noiseLineWords = []string{
	"copyright", "站点地图", "热搜小说", "广告", "推荐", "返回", "目录",
	"加入书签", "翻页", "上一章", "下一章", "返回书架", "继续阅读",
	"最新章节", "分类:", "本章完",
}

// looksLikeChapterTitle reports whether an anchor text plausibly names a
// chapter rather than navigation.
func looksLikeChapterTitle(title string) bool {
	return chapterTitleRe.MatchString(title)
}

// isSkippedTitle filters boilerplate anchors by a keyword denylist.
func isSkippedTitle(title string) bool {
	if utf8.RuneCountInString(title) <= 1 {
		return true
	}
	for _, w := range skipTitleWords {
		if strings.Contains(title, w) {
			return true
		}
	}
	return false
}

// stripNoiseLines drops ad/navigation lines from a chapter body.
func stripNoiseLines(content string) string {
	var kept []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		noisy := false
		for _, w := range noiseLineWords {
			if strings.Contains(lower, w) {
				noisy = true
				break
			}
		}
		if !noisy {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

var (
	blankRunsRe = regexp.MustCompile(`\n\s*\n+`)
	spaceRunsRe = regexp.MustCompile(`[ \t]+`)
)

// cleanContent normalizes whitespace in an extracted body.
func cleanContent(content string) string {
	content = blankRunsRe.ReplaceAllString(content, "\n\n")
	content = spaceRunsRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

// selectionText renders a container as newline-separated text with
// script/style/ad nodes removed.
func selectionText(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find("script, style, ins, iframe").Remove()

	var b strings.Builder
	clone.Contents().Each(func(_ int, n *goquery.Selection) {
		t := strings.TrimSpace(n.Text())
		if t == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t)
	})
	if b.Len() == 0 {
		return strings.TrimSpace(clone.Text())
	}
	return b.String()
}

// extractBySelectors tries an ordered chain of container selectors and
// returns the first extraction that clears minLen runes.
func extractBySelectors(doc *goquery.Document, selectors []string, minLen int) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := cleanContent(selectionText(node))
		if utf8.RuneCountInString(text) >= minLen {
			return text
		}
	}
	return ""
}

// largestBlockText falls back to the div carrying the most text, accepted
// only above minLen runes. Sites with no stable content container usually
// still have one dominant text block.
func largestBlockText(doc *goquery.Document, minLen int) string {
	var best *goquery.Selection
	bestLen := 0
	doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		n := utf8.RuneCountInString(div.Text())
		if n > bestLen {
			bestLen = n
			best = div
		}
	})
	if best == nil || bestLen < minLen {
		return ""
	}
	return cleanContent(selectionText(best))
}

// paragraphText joins the texts of a selection's <p> descendants when there
// are at least minCount of them.
func paragraphText(sel *goquery.Selection, minCount int) string {
	var parts []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		t := strings.TrimSpace(p.Text())
		if t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) < minCount {
		return ""
	}
	return strings.Join(parts, "\n")
}

// pageTitle extracts the chapter heading, preferring <h1> over <title>.
func pageTitle(doc *goquery.Document, fallback string) string {
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return fallback
}

// dedupeChapters keeps the first occurrence of each chapter URL, preserving
// order, and assigns zero-based indices over the final list.
func dedupeChapters(chs []models.Chapter) []models.Chapter {
	seen := make(map[string]bool, len(chs))
	out := make([]models.Chapter, 0, len(chs))
	for _, ch := range chs {
		if ch.URL == "" || seen[ch.URL] {
			continue
		}
		seen[ch.URL] = true
		ch.ChapterIndex = len(out)
		out = append(out, ch)
	}
	return out
}
