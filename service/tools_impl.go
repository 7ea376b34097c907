package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var toolHTTPClient = &http.Client{Timeout: 30 * time.Second}

func toolGetJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	res, err := toolHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %v", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %v", err)
	}
	if res.StatusCode != 200 {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing JSON: %v", err)
	}
	return nil
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// --- web_search ---

// WebSearchCapability searches the web through the configured engine and
// remembers every result it produced, so the continuation composer can cite
// them.
type WebSearchCapability struct {
	Engine  *SearchEngine
	sources []SearchResult
}

func NewWebSearchCapability(engine *SearchEngine) *WebSearchCapability {
	return &WebSearchCapability{Engine: engine}
}

func (w *WebSearchCapability) Name() string { return ToolWebSearch }

func (w *WebSearchCapability) Definition() OpenTool {
	return OpenTool{
		Type: ToolTypeFunction,
		Function: &OpenFunctionDefinition{
			Name:        ToolWebSearch,
			Description: "Retrieve the most relevant and up-to-date information from the web.",
			Parameters: objectSchema(map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search term or question to find information about.",
				},
			}, "query"),
		},
	}
}

func (w *WebSearchCapability) Execute(ctx context.Context, argsJSON string) (string, error) {
	argsMap, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	query, err := stringArg(argsMap, "query")
	if err != nil {
		return "", err
	}

	results, err := w.Engine.Search(query)
	if err != nil {
		return "", fmt.Errorf("error performing search: %v", err)
	}
	// keep the search results for references
	w.sources = append(w.sources, results...)

	resultsJSON, err := json.Marshal(map[string]interface{}{
		"query":   query,
		"results": results,
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling results: %v", err)
	}
	return string(resultsJSON), nil
}

// Sources returns every result gathered across this session's searches.
func (w *WebSearchCapability) Sources() []SearchResult {
	return w.sources
}

// --- calculator ---

// CalculatorCapability evaluates arithmetic expressions locally.
type CalculatorCapability struct{}

func (CalculatorCapability) Name() string { return ToolCalculator }

func (CalculatorCapability) Definition() OpenTool {
	return OpenTool{
		Type: ToolTypeFunction,
		Function: &OpenFunctionDefinition{
			Name:        ToolCalculator,
			Description: "Evaluate an arithmetic expression with +, -, *, / and parentheses.",
			Parameters: objectSchema(map[string]interface{}{
				"expression": map[string]interface{}{
					"type":        "string",
					"description": "The arithmetic expression to evaluate, e.g. (2+3)*4.",
				},
			}, "expression"),
		},
	}
}

func (CalculatorCapability) Execute(_ context.Context, argsJSON string) (string, error) {
	argsMap, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	expr, err := stringArg(argsMap, "expression")
	if err != nil {
		return "", err
	}
	value, err := evalExpression(expr)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(value, 'f', -1, 64), nil
}

// evalExpression is a small recursive-descent evaluator.
// Grammar: expr := term (('+'|'-') term)*; term := factor (('*'|'/') factor)*;
// factor := number | '(' expr ')' | '-' factor
func evalExpression(input string) (float64, error) {
	p := &exprParser{src: input}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("unexpected character %q in expression", p.src[p.pos])
	}
	return v, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
			p.pos++
		}
		return strconv.ParseFloat(p.src[start:p.pos], 64)
	case c == 0:
		return 0, fmt.Errorf("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected character %q in expression", c)
	}
}

// --- weather ---

// WeatherCapability answers current-conditions queries via the Open-Meteo
// public API (geocoding first, then forecast).
type WeatherCapability struct{}

func (WeatherCapability) Name() string { return ToolWeather }

func (WeatherCapability) Definition() OpenTool {
	return OpenTool{
		Type: ToolTypeFunction,
		Function: &OpenFunctionDefinition{
			Name:        ToolWeather,
			Description: "Get the current weather conditions for a city or place.",
			Parameters: objectSchema(map[string]interface{}{
				"location": map[string]interface{}{
					"type":        "string",
					"description": "City or place name, e.g. Berlin.",
				},
			}, "location"),
		},
	}
}

func (WeatherCapability) Execute(ctx context.Context, argsJSON string) (string, error) {
	argsMap, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	location, err := stringArg(argsMap, "location")
	if err != nil {
		return "", err
	}

	var geo struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	geoURL := fmt.Sprintf("https://geocoding-api.open-meteo.com/v1/search?name=%s&count=1",
		url.QueryEscape(location))
	if err := toolGetJSON(ctx, geoURL, &geo); err != nil {
		return "", fmt.Errorf("[Weather]geocoding failed: %v", err)
	}
	if len(geo.Results) == 0 {
		return "", fmt.Errorf("[Weather]no match for location %q", location)
	}
	place := geo.Results[0]

	var forecast struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			WindSpeed   float64 `json:"wind_speed_10m"`
			Humidity    float64 `json:"relative_humidity_2m"`
			WeatherCode int     `json:"weather_code"`
		} `json:"current"`
	}
	fcURL := fmt.Sprintf("https://api.open-meteo.com/v1/forecast?latitude=%.4f&longitude=%.4f&current=temperature_2m,wind_speed_10m,relative_humidity_2m,weather_code",
		place.Latitude, place.Longitude)
	if err := toolGetJSON(ctx, fcURL, &forecast); err != nil {
		return "", fmt.Errorf("[Weather]forecast failed: %v", err)
	}

	out, _ := json.Marshal(map[string]interface{}{
		"location":      fmt.Sprintf("%s, %s", place.Name, place.Country),
		"temperature_c": forecast.Current.Temperature,
		"wind_kmh":      forecast.Current.WindSpeed,
		"humidity_pct":  forecast.Current.Humidity,
		"weather_code":  forecast.Current.WeatherCode,
	})
	return string(out), nil
}

// --- translate ---

// TranslateCapability translates short text via the MyMemory public API.
type TranslateCapability struct{}

func (TranslateCapability) Name() string { return ToolTranslate }

func (TranslateCapability) Definition() OpenTool {
	return OpenTool{
		Type: ToolTypeFunction,
		Function: &OpenFunctionDefinition{
			Name:        ToolTranslate,
			Description: "Translate text between two languages.",
			Parameters: objectSchema(map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "The text to translate.",
				},
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Source language code, e.g. en.",
				},
				"target": map[string]interface{}{
					"type":        "string",
					"description": "Target language code, e.g. fr.",
				},
			}, "text", "target"),
		},
	}
}

func (TranslateCapability) Execute(ctx context.Context, argsJSON string) (string, error) {
	argsMap, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	text, err := stringArg(argsMap, "text")
	if err != nil {
		return "", err
	}
	target, err := stringArg(argsMap, "target")
	if err != nil {
		return "", err
	}
	source, _ := argsMap["source"].(string)
	if source == "" {
		source = "en"
	}

	var resp struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	reqURL := fmt.Sprintf("https://api.mymemory.translated.net/get?q=%s&langpair=%s|%s",
		url.QueryEscape(text), url.QueryEscape(source), url.QueryEscape(target))
	if err := toolGetJSON(ctx, reqURL, &resp); err != nil {
		return "", fmt.Errorf("[Translate]request failed: %v", err)
	}
	if resp.ResponseData.TranslatedText == "" {
		return "", fmt.Errorf("[Translate]empty translation for %q", text)
	}

	out, _ := json.Marshal(map[string]string{
		"source":      source,
		"target":      target,
		"translation": resp.ResponseData.TranslatedText,
	})
	return string(out), nil
}

// --- wiki_lookup ---

// WikiCapability fetches an encyclopedia summary from the Wikipedia REST API.
type WikiCapability struct{}

func (WikiCapability) Name() string { return ToolWikiLookup }

func (WikiCapability) Definition() OpenTool {
	return OpenTool{
		Type: ToolTypeFunction,
		Function: &OpenFunctionDefinition{
			Name:        ToolWikiLookup,
			Description: "Look up an encyclopedia summary for a topic.",
			Parameters: objectSchema(map[string]interface{}{
				"topic": map[string]interface{}{
					"type":        "string",
					"description": "The topic to look up, e.g. Alan Turing.",
				},
			}, "topic"),
		},
	}
}

func (WikiCapability) Execute(ctx context.Context, argsJSON string) (string, error) {
	argsMap, err := decodeArgs(argsJSON)
	if err != nil {
		return "", err
	}
	topic, err := stringArg(argsMap, "topic")
	if err != nil {
		return "", err
	}

	var resp struct {
		Title   string `json:"title"`
		Extract string `json:"extract"`
		Content struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	title := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	reqURL := fmt.Sprintf("https://en.wikipedia.org/api/rest_v1/page/summary/%s", url.PathEscape(title))
	if err := toolGetJSON(ctx, reqURL, &resp); err != nil {
		return "", fmt.Errorf("[Wiki]lookup failed: %v", err)
	}
	if resp.Extract == "" {
		return "", fmt.Errorf("[Wiki]no summary for topic %q", topic)
	}

	out, _ := json.Marshal(map[string]string{
		"title":   resp.Title,
		"summary": resp.Extract,
		"url":     resp.Content.Desktop.Page,
	})
	return string(out), nil
}

// DefaultCapabilities wires the full capability set for a session. The
// web-search capability is returned separately so the caller can harvest
// its sources for citations.
func DefaultCapabilities(engine *SearchEngine) (*ToolExecutionCoordinator, *WebSearchCapability) {
	search := NewWebSearchCapability(engine)
	coordinator := NewToolExecutionCoordinator(
		search,
		CalculatorCapability{},
		WeatherCapability{},
		TranslateCapability{},
		WikiCapability{},
	)
	return coordinator, search
}
