package service

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Search result enrichment: fetch each result page and distill the readable
// text so the model can ground its continuation on more than a snippet.
const (
	pageFetchTimeout = 20 * time.Second
	pageTextLimit    = 8000 // cap per page, keeps the tool payload bounded
	minSegmentChars  = 20   // drop nav crumbs and button labels
)

var pageClient = &http.Client{Timeout: pageFetchTimeout}

// boilerplateSelector matches chrome that never carries article text.
const boilerplateSelector = "script, style, noscript, iframe, svg, form, button, input, " +
	"nav, header, footer, aside, " +
	"[class*='sidebar'], [class*='comment'], [class*='cookie'], [class*='advert'], [id*='sidebar']"

// FetchPageText retrieves one page and returns its distilled text.
func FetchPageText(pageURL string) (string, error) {
	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	// Some sites answer scrapers with a challenge page; a browser UA gets
	// the real article more often.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := pageClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return distillText(doc), nil
}

// distillText reduces a parsed page to its readable body text: boilerplate
// removed, short fragments dropped, length capped.
func distillText(doc *goquery.Document) string {
	doc.Find(boilerplateSelector).Remove()

	root := doc.Find("article, main, [itemprop='articleBody']").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var segments []string
	root.Find("p, h1, h2, h3, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		text := squashSpace(s.Text())
		if len(text) >= minSegmentChars {
			segments = append(segments, text)
		}
	})
	// Pages without paragraph markup still get their raw body text.
	if len(segments) == 0 {
		if text := squashSpace(root.Text()); len(text) >= minSegmentChars {
			segments = append(segments, text)
		}
	}

	joined := strings.Join(segments, "\n")
	if len(joined) > pageTextLimit {
		joined = joined[:pageTextLimit]
	}
	return joined
}

func squashSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FetchPages fetches every link concurrently and returns the distilled text
// in input order. A page that fails to fetch yields an empty string, never
// an error: enrichment is best effort.
func FetchPages(urls []string) []string {
	results := make([]string, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(idx int, pageURL string) {
			defer wg.Done()
			text, err := FetchPageText(pageURL)
			if err != nil {
				Debugf("Can't extract content from [%s]: %v", pageURL, err)
				return
			}
			results[idx] = text
		}(i, u)
	}
	wg.Wait()
	return results
}
