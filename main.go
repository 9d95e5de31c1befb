package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/nkwachiabel/docdocgo-core/chat"
	"github.com/nkwachiabel/docdocgo-core/config"
	"github.com/nkwachiabel/docdocgo-core/database"
	"github.com/nkwachiabel/docdocgo-core/embeddings"
	"github.com/nkwachiabel/docdocgo-core/ingestion"
	"github.com/nkwachiabel/docdocgo-core/knowledge"
	"github.com/nkwachiabel/docdocgo-core/llm"
	"github.com/nkwachiabel/docdocgo-core/research"
	"github.com/nkwachiabel/docdocgo-core/search"
	"github.com/nkwachiabel/docdocgo-core/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	switch os.Args[1] {
	case "chat":
		chatCmd(cfg, logger, os.Args[2:])
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "collections":
		collectionsCmd(cfg, logger)
	default:
		logger.Errorf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

// backend bundles the shared infrastructure the subcommands build on.
type backend struct {
	admin *store.Admin
	graph *knowledge.Store
	close func(ctx context.Context)
}

func newBackend(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*backend, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}

	if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	// The graph store is an enrichment layer; run without it when Neo4j is
	// not reachable rather than refusing to start.
	var graph *knowledge.Store
	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.WithError(err).Warn("neo4j unavailable, continuing without the knowledge graph")
	} else {
		graph = knowledge.NewStore(driver, logger)
	}

	b := &backend{
		admin: store.NewAdmin(pool, embedder, logger),
		graph: graph,
	}
	b.close = func(ctx context.Context) {
		pool.Close()
		if driver != nil {
			_ = driver.Close(ctx)
		}
	}
	return b, nil
}

func chatCmd(cfg config.Config, logger *logrus.Logger, args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	collectionName := flags.String("collection", cfg.DefaultCollection, "collection to chat with")
	modeName := flags.String("mode", cfg.DefaultMode, "default command when the message has none (docs, chat, quotes, ...)")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse chat flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer b.close(ctx)

	collection, err := b.admin.Create(ctx, *collectionName)
	if err != nil {
		logger.Fatalf("open collection %q: %v", *collectionName, err)
	}

	client, err := llm.NewClient(cfg, logger)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	settings := llm.Settings{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxAnswerTokens,
	}

	collab := chat.Collaborators{
		Collections: b.admin,
		Opener:      adminOpener{admin: b.admin},
	}
	if cfg.Tavily.APIKey != "" {
		tavily := search.NewTavilyClient(cfg.Tavily, client, settings, logger)
		collab.Searcher = tavily
		collab.Researcher = research.NewAgent(client, tavily, b.admin, settings, logger)
	} else {
		logger.Warn("TAVILY_API_KEY not set; /web and /research are disabled")
	}

	engine := chat.NewEngine(client, llm.NewTokenizer(logger), collab, chat.Options{
		MaxDocs:               cfg.Retrieval.MaxDocs,
		RelevanceThreshold:    cfg.Retrieval.RelevanceThreshold,
		ContextTokenBudget:    cfg.Retrieval.ContextTokenBudget,
		OverFetchFactor:       cfg.Retrieval.OverFetchFactor,
		VerboseCondensePrompt: cfg.Debug.VerboseCondensePrompt,
		VerboseQAPrompt:       cfg.Debug.VerboseQAPrompt,
		VerboseSimilarities:   cfg.Debug.VerboseSimilarities,
	}, logger)

	defaultMode := chat.ParseMode(*modeName)
	printBanner(ctx, collection, defaultMode)

	runREPL(ctx, cfg, logger, engine, b.graph, collection, settings, defaultMode)
}

func printBanner(ctx context.Context, collection store.Collection, defaultMode chat.Mode) {
	count, err := collection.Count(ctx)
	if err != nil {
		fmt.Printf("Collection: %s\n", collection.Name())
	} else {
		fmt.Printf("Collection: %s (%d chunks)\n", collection.Name(), count)
	}
	fmt.Printf("Default command: /%s. Type /help for the full list, or exit to quit.\n\n", defaultMode)
}

func runREPL(
	ctx context.Context,
	cfg config.Config,
	logger *logrus.Logger,
	engine *chat.Engine,
	graph *knowledge.Store,
	collection store.Collection,
	settings llm.Settings,
	defaultMode chat.Mode,
) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var history []chat.Exchange

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Errorf("read input: %v", err)
			}
			fmt.Println()
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		parsed := chat.ParseQuery(line, defaultMode)
		state := chat.NewState(parsed, history, collection, settings, chat.OpConsole)
		state.Stream = func(fragment string) error {
			fmt.Print(fragment)
			return nil
		}

		fmt.Print("\nDDG: ")
		resp, err := engine.GetResponse(ctx, state)
		if err != nil {
			if cfg.Debug.ReraiseErrors {
				logger.Fatalf("turn failed: %v", err)
			}
			fmt.Printf("Sorry, I could not handle that. (%v)\n\n", err)
			continue
		}

		if resp.Streamed {
			fmt.Println()
		} else {
			fmt.Println(resp.Answer)
		}

		if cfg.Debug.PrintStandaloneQuery && resp.GeneratedQuestion != "" {
			fmt.Printf("\n[standalone query: %s]\n", resp.GeneratedQuestion)
		}

		printSources(ctx, graph, collection, resp)
		fmt.Println()

		if resp.Collection != nil {
			collection = resp.Collection
		}
		if resp.Answer != "" {
			history = append(history, chat.Exchange{User: parsed.Message, Assistant: resp.Answer})
		}
	}
}

// printSources lists the cited sources, enriched with knowledge-graph metadata
// when the graph store is available.
func printSources(ctx context.Context, graph *knowledge.Store, collection store.Collection, resp chat.Response) {
	links := chat.SourceLinks(resp)
	if len(links) == 0 {
		return
	}

	var insights map[string]knowledge.Insight
	if collection != nil {
		insights, _ = graph.Insights(ctx, collection.Name(), resp.Sources)
	}

	fmt.Println("\nSources:")
	for i, link := range links {
		fmt.Printf("%d. %s", i+1, link)
		if insight, ok := insights[link]; ok {
			if insight.Title != "" {
				fmt.Printf(" — %s", insight.Title)
			}
			if insight.ChunkCount > 0 {
				fmt.Printf(" (%d chunks)", insight.ChunkCount)
			}
		}
		fmt.Println()
	}
}

func ingestCmd(cfg config.Config, logger *logrus.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dir := flags.String("dir", "data", "directory with .md, .txt or .pdf files")
	collectionName := flags.String("collection", cfg.DefaultCollection, "target collection")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer b.close(ctx)

	svc := ingestion.NewService(b.admin, b.graph, logger)
	if err := svc.IngestDirectory(ctx, *dir, *collectionName); err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}
}

func collectionsCmd(cfg config.Config, logger *logrus.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer b.close(ctx)

	infos, err := b.admin.List(ctx)
	if err != nil {
		logger.Fatalf("list collections: %v", err)
	}
	if len(infos) == 0 {
		fmt.Println("No collections. Run `docdocgo ingest` to create one.")
		return
	}
	for _, info := range infos {
		fmt.Printf("%s (%d chunks)\n", info.Name, info.Chunks)
	}
}

// adminOpener adapts store.Admin to the dispatcher's opener interface, which
// deals in the Collection interface rather than the concrete type.
type adminOpener struct {
	admin *store.Admin
}

func (o adminOpener) Open(ctx context.Context, name string) (store.Collection, error) {
	return o.admin.Open(ctx, name)
}

func printUsage() {
	fmt.Println("Usage: docdocgo <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  chat         Interactive chat over a collection (use --collection and --mode)")
	fmt.Println("  ingest       Ingest local documents into a collection (--dir, --collection)")
	fmt.Println("  collections  List collections and their sizes")
}
