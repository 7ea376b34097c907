package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	serp "github.com/serpapi/google-search-results-golang"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

const (
	TavilyUrl          = "https://api.tavily.com/search"
	GoogleSearchEngine = "google"
	BingSearchEngine   = "bing"
	TavilySearchEngine = "tavily"
	NoneSearchEngine   = "none"
)

// SearchResult is one normalized web result, independent of the engine that
// produced it.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	DisplayLink string `json:"display_link,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Content     string `json:"content,omitempty"`
}

// SearchEngine holds the engine selection and credentials for a session's
// web_search capability.
type SearchEngine struct {
	Name       string
	APIKey     string
	CxKey      string // Google custom search engine id
	MaxResults int
	FetchPages bool // enrich results with extracted page text
}

func (e *SearchEngine) limit() int {
	if e.MaxResults > 0 {
		return e.MaxResults
	}
	return 10
}

// Search runs a query against the configured engine.
func (e *SearchEngine) Search(query string) ([]SearchResult, error) {
	switch e.Name {
	case GoogleSearchEngine:
		return e.googleSearch(query)
	case BingSearchEngine:
		return e.serpAPISearch(query, "bing")
	case TavilySearchEngine:
		return e.tavilySearch(query)
	case NoneSearchEngine, "":
		return []SearchResult{}, nil
	default:
		return nil, fmt.Errorf("unknown search engine: %s", e.Name)
	}
}

// Tavily API response shapes.
type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type tavilyResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer"`
	Results []tavilyResult `json:"results"`
}

type tavilyError struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}

func (e *SearchEngine) tavilySearch(query string) ([]SearchResult, error) {
	payload, err := json.Marshal(map[string]any{
		"query":          query,
		"topic":          "general",
		"search_depth":   "basic",
		"max_results":    e.limit(),
		"include_answer": "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("[Tavily]Error building payload: %v", err)
	}

	req, err := http.NewRequest("POST", TavilyUrl, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("[Tavily]Error creating request: %v", err)
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", e.APIKey))
	req.Header.Add("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[Tavily]Error sending request: %v", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("[Tavily]Error reading response: %v", err)
	}
	if res.StatusCode != 200 {
		var terr tavilyError
		if err := json.Unmarshal(body, &terr); err != nil {
			return nil, fmt.Errorf("[Tavily]Error: status %d", res.StatusCode)
		}
		return nil, fmt.Errorf("[Tavily]Error: %s", terr.Detail.Error)
	}

	var tresp tavilyResponse
	if err := json.Unmarshal(body, &tresp); err != nil {
		return nil, fmt.Errorf("[Tavily]Error parsing JSON: %v", err)
	}

	results := make([]SearchResult, 0, len(tresp.Results))
	for _, r := range tresp.Results {
		results = append(results, SearchResult{
			Title:       r.Title,
			URL:         r.URL,
			DisplayLink: hostnameOf(r.URL),
			Snippet:     r.Content,
		})
	}
	return e.enrich(results), nil
}

func (e *SearchEngine) googleSearch(query string) ([]SearchResult, error) {
	ctx := context.Background() // Required for NewService
	svc, err := customsearch.NewService(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return nil, fmt.Errorf("[Google]Error creating service: %v", err)
	}

	resp, err := svc.Cse.List().Safe("off").Num(int64(e.limit())).Cx(e.CxKey).Q(query).Do()
	if err != nil {
		return nil, fmt.Errorf("[Google]Error making API call: %v", err)
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, SearchResult{
			Title:       item.Title,
			URL:         item.Link,
			DisplayLink: item.DisplayLink,
			Snippet:     item.Snippet,
		})
	}
	return e.enrich(results), nil
}

func (e *SearchEngine) serpAPISearch(query string, engine string) ([]SearchResult, error) {
	parameter := map[string]string{
		"engine":     engine,
		"q":          query,
		"count":      fmt.Sprintf("%d", e.limit()),
		"first":      "1",
		"safeSearch": "off",
	}

	search := serp.NewGoogleSearch(parameter, e.APIKey)
	raw, err := search.GetJSON()
	if err != nil {
		return nil, fmt.Errorf("[SerpAPI]Error getting JSON: %v", err)
	}

	var results []SearchResult
	if organic, ok := raw["organic_results"].([]interface{}); ok {
		for _, r := range organic {
			m, ok := r.(map[string]interface{})
			if !ok {
				continue
			}
			res := SearchResult{
				Title:       stringField(m, "title"),
				URL:         stringField(m, "link"),
				DisplayLink: stringField(m, "displayed_link"),
				Snippet:     stringField(m, "snippet"),
			}
			if res.DisplayLink == "" {
				res.DisplayLink = hostnameOf(res.URL)
			}
			results = append(results, res)
		}
	}
	return e.enrich(results), nil
}

// enrich attaches extracted page text to each result when configured.
func (e *SearchEngine) enrich(results []SearchResult) []SearchResult {
	if !e.FetchPages || len(results) == 0 {
		return results
	}
	links := make([]string, 0, len(results))
	for _, r := range results {
		links = append(links, r.URL)
	}
	contents := FetchPages(links)
	for i := range results {
		if i < len(contents) {
			results[i].Content = contents[i]
		}
	}
	return results
}

func hostnameOf(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
