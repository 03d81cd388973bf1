package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Browser UA the source sites are known to serve full markup to.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// NewHTTPClient builds the shared client for source fetches: cookie jar,
// per-request timeout, and a RoundTripper that injects browser headers.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: uaTransport{
			base: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				ForceAttemptHTTP2:   true,
			},
			ua: defaultUserAgent,
		},
	}
}

type uaTransport struct {
	base http.RoundTripper
	ua   string
}

func (t uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.ua)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	}
	return t.base.RoundTrip(req)
}

// fetchDOM GETs target and parses it into a document, decoding legacy
// encodings (gbk pages are common on these sites) via the charset sniffer.
func fetchDOM(ctx context.Context, client *http.Client, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	return doDOM(client, req, target)
}

// postFormDOM POSTs form values to target and parses the response.
func postFormDOM(ctx context.Context, client *http.Client, target string, form url.Values) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doDOM(client, req, target)
}

func doDOM(client *http.Client, req *http.Request, target string) (*goquery.Document, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{URL: target, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &ExtractionError{URL: target, Reason: fmt.Sprintf("charset: %v", err)}
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &ExtractionError{URL: target, Reason: fmt.Sprintf("parse html: %v", err)}
	}
	return doc, nil
}

// resolveURL makes href absolute against base. Scraped hrefs are untrusted;
// anything url.Parse rejects is passed through unchanged rather than
// resolved.
func resolveURL(base, href string) string {
	if href == "" {
		return base
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}

// sleepBackoff waits for d or until ctx is done.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
