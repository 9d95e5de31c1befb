// Package research implements the iterative-research collaborator: it plans
// web searches for a query, synthesizes a report from the results, and
// archives the report into a fresh collection so follow-up questions can be
// answered over it.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nkwachiabel/docdocgo-core/chat"
	"github.com/nkwachiabel/docdocgo-core/ingestion"
	"github.com/nkwachiabel/docdocgo-core/llm"
	"github.com/nkwachiabel/docdocgo-core/search"
	"github.com/nkwachiabel/docdocgo-core/store"
)

const (
	maxSearchQueries   = 3
	reportChunkSize    = 1000
	reportChunkOverlap = 200
)

// SourceFetcher returns raw web results for a query.
type SourceFetcher interface {
	Fetch(ctx context.Context, query string) ([]search.Result, error)
}

type Agent struct {
	llm      llm.Client
	fetcher  SourceFetcher
	admin    *store.Admin
	settings llm.Settings
	logger   *logrus.Logger
}

func NewAgent(client llm.Client, fetcher SourceFetcher, admin *store.Admin, settings llm.Settings, logger *logrus.Logger) *Agent {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Agent{
		llm:      client,
		fetcher:  fetcher,
		admin:    admin,
		settings: settings,
		logger:   logger,
	}
}

type researchPlan struct {
	Queries    []string `json:"queries"`
	ReportType string   `json:"report_type"`
}

// Research runs one research pass: plan, search, report, archive. The report
// is written into a new collection whose name is returned so the dispatcher
// can hot-swap the active handle.
func (a *Agent) Research(ctx context.Context, state chat.State) (chat.ResearchResult, error) {
	if a.fetcher == nil {
		return chat.ResearchResult{}, fmt.Errorf("web search is not configured")
	}

	plan := a.plan(ctx, state.Message)

	results := make([]search.Result, 0)
	links := make([]string, 0)
	for _, query := range plan.Queries {
		fetched, err := a.fetcher.Fetch(ctx, query)
		if err != nil {
			a.logger.WithError(err).WithField("query", query).Warn("search failed, skipping query")
			continue
		}
		for _, result := range fetched {
			results = append(results, result)
			links = append(links, result.URL)
		}
	}
	if len(results) == 0 {
		return chat.ResearchResult{}, fmt.Errorf("no web results found for any planned query")
	}

	report, err := a.writeReport(ctx, state.Message, plan.ReportType, results)
	if err != nil {
		return chat.ResearchResult{}, err
	}

	collectionName := a.archive(ctx, report, results)

	return chat.ResearchResult{
		Answer:         report,
		SourceLinks:    links,
		CollectionName: collectionName,
	}, nil
}

const planPromptTemplate = `You are an advanced assistant in satisfying USER's information need.

You are given the following query: %s

You don't need to answer the query. Instead, determine the information need behind it and produce:
1. "queries": an array of at most %d google search queries that would be most helpful to perform (sub-questions and/or rephrasings targeting an objective, up-to-date answer).
2. "report_type": a brief description of the type of answer/report that best suits the information need (e.g. "comprehensive report", "step by step guide", "brief one sentence answer").

Return ONLY JSON of the form {"queries": [...], "report_type": "..."} with no other text.`

// plan asks the model for a search plan; malformed output falls back to
// searching the raw query directly.
func (a *Agent) plan(ctx context.Context, query string) researchPlan {
	fallback := researchPlan{Queries: []string{query}, ReportType: "concise, specifics-dense report"}

	settings := a.settings
	settings.Temperature = 0
	prompt := fmt.Sprintf(planPromptTemplate, query, maxSearchQueries)

	out, err := a.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, settings)
	if err != nil {
		a.logger.WithError(err).Warn("research planning failed, searching the raw query")
		return fallback
	}

	var plan researchPlan
	if err := json.Unmarshal([]byte(extractJSON(out)), &plan); err != nil || len(plan.Queries) == 0 {
		a.logger.WithField("output", out).Warn("could not parse research plan, searching the raw query")
		return fallback
	}

	if len(plan.Queries) > maxSearchQueries {
		plan.Queries = plan.Queries[:maxSearchQueries]
	}
	if plan.ReportType == "" {
		plan.ReportType = fallback.ReportType
	}
	return plan
}

const reportPromptTemplate = `Here is the scraped content of some online sources.

<sources>%s</sources>

Using them, please respond to the following query:

<query>%s</query>

1. Focus on addressing the specific query.
2. Avoid fluff and irrelevant information.
3. Provide available facts, figures, examples, details, dates, locations, etc.
4. If not enough information is available, be honest about it.

The report type should be: %s

Format nicely in Markdown, starting with a title. List the source URLs you used at the end, without duplicates.`

func (a *Agent) writeReport(ctx context.Context, query, reportType string, results []search.Result) (string, error) {
	var sb strings.Builder
	for i, result := range results {
		fmt.Fprintf(&sb, "SOURCE %d: %s (%s)\n%s\n\n", i+1, result.Title, result.URL, result.Content)
	}

	prompt := fmt.Sprintf(reportPromptTemplate, sb.String(), query, reportType)
	report, err := a.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, a.settings)
	if err != nil {
		return "", fmt.Errorf("write research report: %w", err)
	}
	return strings.TrimSpace(report), nil
}

// archive stores the report and its sources in a fresh collection. Archival
// failures degrade to a report without a collection swap rather than losing
// the answer.
func (a *Agent) archive(ctx context.Context, report string, results []search.Result) string {
	if a.admin == nil {
		return ""
	}

	name := "research-" + uuid.NewString()[:8]
	collection, err := a.admin.Create(ctx, name)
	if err != nil {
		a.logger.WithError(err).Warn("could not create research collection")
		return ""
	}

	entries := make([]store.Entry, 0)
	for i, part := range ingestion.SplitText(report, reportChunkSize, reportChunkOverlap) {
		entries = append(entries, store.Entry{
			Text:       part,
			Source:     fmt.Sprintf("research-report#%d", i),
			ChunkIndex: i,
		})
	}
	for _, result := range results {
		for i, part := range ingestion.SplitText(result.Content, reportChunkSize, reportChunkOverlap) {
			entries = append(entries, store.Entry{
				Text:       part,
				Source:     result.URL,
				ChunkIndex: i,
			})
		}
	}

	if err := collection.AddTexts(ctx, entries); err != nil {
		a.logger.WithError(err).Warn("could not archive research material")
		return ""
	}

	a.logger.WithFields(logrus.Fields{
		"collection": name,
		"chunks":     len(entries),
	}).Info("archived research material")
	return name
}

// extractJSON pulls the first top-level JSON object out of model output that
// may be wrapped in code fences or narration.
func extractJSON(out string) string {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return out
	}
	return out[start : end+1]
}

var _ chat.Researcher = (*Agent)(nil)
