package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxPageBytes = 2 << 20 // 2 MiB

var contentsHTTPClient = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	},
}

// PageContent is the extracted text of one fetched page.
type PageContent struct {
	URL   string
	Title string
	Text  string
	Err   error
}

// GetContents fetches and extracts the main-body paragraph text of each
// URL. Grounded on a trimmed internal/api/searxng_enrich.go: fetch +
// goquery paragraph extraction only, no differential-compression
// summarization layer.
func (c *Client) GetContents(ctx context.Context, urls []string) []PageContent {
	out := make([]PageContent, len(urls))
	for i, u := range urls {
		out[i] = fetchPage(ctx, u)
	}
	return out
}

func fetchPage(ctx context.Context, rawURL string) PageContent {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return PageContent{URL: rawURL, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("User-Agent", "tangent/1.0 (+serendipitous retrieval engine)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1")

	resp, err := contentsHTTPClient.Do(req)
	if err != nil {
		return PageContent{URL: rawURL, Err: fmt.Errorf("fetch failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PageContent{URL: rawURL, Err: fmt.Errorf("fetch returned status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(&limitedReader{r: resp.Body, max: maxPageBytes})
	if err != nil {
		return PageContent{URL: rawURL, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}

	doc.Find("script, style, noscript, iframe, svg, canvas, template, nav, footer, aside, form").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	var mainContainer *goquery.Selection
	mainContainer = doc.Find("article").First()
	if mainContainer.Length() == 0 {
		mainContainer = doc.Find("main, [role='main']").First()
	}
	if mainContainer.Length() == 0 {
		mainContainer = doc.Find("body")
	}

	var paragraphs []string
	mainContainer.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(collapseSpace(p.Text()))
		if utf8.RuneCountInString(text) < 30 {
			return
		}
		paragraphs = append(paragraphs, text)
	})

	text := strings.Join(paragraphs, " ")
	if utf8.RuneCountInString(text) > 8000 {
		text = string([]rune(text)[:8000])
	}

	return PageContent{URL: rawURL, Title: title, Text: text}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// limitedReader caps the number of bytes goquery will read from a page.
type limitedReader struct {
	r   io.Reader
	max int
	n   int
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n >= l.max {
		return 0, io.EOF
	}
	if remain := l.max - l.n; len(p) > remain {
		p = p[:remain]
	}
	n, err := l.r.Read(p)
	l.n += n
	return n, err
}
