// Package search implements the web-search collaborator on top of the Tavily
// API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nkwachiabel/docdocgo-core/config"
	"github.com/nkwachiabel/docdocgo-core/llm"
)

const defaultTavilyEndpoint = "https://api.tavily.com/search"

// TavilyClient answers queries through the Tavily search API. When Tavily does
// not return a direct answer, the result set is summarized through the
// generation client.
type TavilyClient struct {
	apiKey      string
	maxResults  int
	searchDepth string
	endpoint    string
	httpClient  *http.Client
	llm         llm.Client
	settings    llm.Settings
	logger      *logrus.Logger
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth,omitempty"`
	IncludeAnswer bool   `json:"include_answer,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer"`
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Result is one raw search hit, exposed for callers that post-process results
// themselves (the researcher) instead of wanting a ready answer.
type Result struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

func NewTavilyClient(cfg config.TavilyConfig, client llm.Client, settings llm.Settings, logger *logrus.Logger) *TavilyClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	return &TavilyClient{
		apiKey:      cfg.APIKey,
		maxResults:  maxResults,
		searchDepth: cfg.SearchDepth,
		endpoint:    defaultTavilyEndpoint,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		llm:         client,
		settings:    settings,
		logger:      logger,
	}
}

// SetEndpoint overrides the Tavily endpoint; used in tests.
func (c *TavilyClient) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

// Search runs the query and returns an answer plus the result links.
func (c *TavilyClient) Search(ctx context.Context, query string) (string, []string, error) {
	if c.apiKey == "" {
		return "", nil, fmt.Errorf("tavily api key is not configured")
	}

	resp, err := c.search(ctx, query)
	if err != nil {
		return "", nil, err
	}

	links := make([]string, 0, len(resp.Results))
	for _, result := range resp.Results {
		if result.URL != "" {
			links = append(links, result.URL)
		}
	}

	answer := strings.TrimSpace(resp.Answer)
	if answer == "" {
		answer, err = c.summarize(ctx, query, resp.Results)
		if err != nil {
			return "", nil, err
		}
	}

	return answer, links, nil
}

// Fetch returns the raw results for a query, filtered of empty content.
func (c *TavilyClient) Fetch(ctx context.Context, query string) ([]Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily api key is not configured")
	}

	resp, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Results))
	for _, result := range resp.Results {
		if strings.TrimSpace(result.Content) == "" {
			continue
		}
		results = append(results, Result(result))
	}
	return results, nil
}

func (c *TavilyClient) search(ctx context.Context, query string) (*tavilyResponse, error) {
	reqBody, err := json.Marshal(tavilyRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   c.searchDepth,
		IncludeAnswer: true,
		MaxResults:    c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"query":        query,
		"search_depth": c.searchDepth,
		"max_results":  c.maxResults,
	}).Debug("sending tavily search request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tavily API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tavily response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal tavily response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"results":    len(parsed.Results),
		"has_answer": parsed.Answer != "",
	}).Debug("tavily search completed")

	return &parsed, nil
}

const searcherPromptTemplate = `Here is the scraped content of some online sources.

<sources>%s</sources>

Your task: determine if the above sources contain the answer to the following query:

<query>%s</query>

Answer following one of these scenarios:

1. If the information to answer the query is not available in the sources, write: "ANSWER NOT FOUND".
2. If the sources contain information to fully answer the query, then write: "ANSWER: " followed by the answer. Cite the source where you found the information, including its URL.
3. If the sources contain information to partially answer the query, then write: "PARTIAL ANSWER: " followed by the partial answer, citing the source(s) including their URL(s).
`

func (c *TavilyClient) summarize(ctx context.Context, query string, results []tavilyResult) (string, error) {
	if c.llm == nil {
		return "", fmt.Errorf("tavily returned no answer and no llm is configured to summarize results")
	}
	if len(results) == 0 {
		return "No relevant web results were found for this query.", nil
	}

	var sb strings.Builder
	for i, result := range results {
		fmt.Fprintf(&sb, "SOURCE %d: %s (%s)\n%s\n\n", i+1, result.Title, result.URL, result.Content)
	}

	prompt := fmt.Sprintf(searcherPromptTemplate, sb.String(), query)
	answer, err := c.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, c.settings)
	if err != nil {
		return "", fmt.Errorf("summarize search results: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
