// Command scraperctl is the operator CLI for the scraping core: database
// migrations and one-shot brand scrapes, without standing up the HTTP
// service or the scheduler loop.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"mediawatch/internal/coordinator"
	"mediawatch/internal/dedup"
	"mediawatch/internal/extractor"
	"mediawatch/internal/httpclient"
	"mediawatch/internal/orchestrator"
	"mediawatch/internal/provider"
	"mediawatch/internal/rategovernor"
	"mediawatch/internal/recipe"
	"mediawatch/internal/recipeanalyzer"
	"mediawatch/internal/store"
	"mediawatch/migrations"
)

func main() {
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/scraper.db"), "path to sqlite database")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "up", "up-one", "down", "status", "version", "reset":
		runMigrateCommand(*dbPath, cmd)
	case "scrape-brand":
		runScrapeBrandCommand(*dbPath, rest)
	case "derive-recipe":
		runDeriveRecipeCommand(*dbPath, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: scraperctl [-db path] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Migration commands:")
	fmt.Fprintln(os.Stderr, "  up              Migrate to the latest version")
	fmt.Fprintln(os.Stderr, "  up-one          Migrate one version up")
	fmt.Fprintln(os.Stderr, "  down            Roll back one version")
	fmt.Fprintln(os.Stderr, "  status          Show migration status")
	fmt.Fprintln(os.Stderr, "  version         Show current version")
	fmt.Fprintln(os.Stderr, "  reset           Roll back all migrations")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Scraping commands:")
	fmt.Fprintln(os.Stderr, "  scrape-brand <id>                       Run a single brand scrape synchronously and exit")
	fmt.Fprintln(os.Stderr, "  derive-recipe <domain> <sample-url>     Derive and persist a source recipe from a sample article")
}

func runMigrateCommand(dbPath, cmd string) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	switch cmd {
	case "up":
		err = goose.Up(db, ".")
	case "up-one":
		err = goose.UpByOne(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	case "reset":
		err = goose.Reset(db, ".")
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// runScrapeBrandCommand runs exactly one brand through the coordinator and
// exits, for ops use and for debugging a brand's configuration without
// standing up the scheduler.
func runScrapeBrandCommand(dbPath string, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: scraperctl scrape-brand <brand-id>")
		os.Exit(1)
	}
	var brandID int64
	if _, err := fmt.Sscanf(args[0], "%d", &brandID); err != nil {
		log.Fatalf("invalid brand id %q: %v", args[0], err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	db, err := store.Open(dbPath)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	st := store.NewSQLite(db)
	recipes := recipe.New(db)

	governor := rategovernor.New(rategovernor.DefaultConfig())
	htmlClient := httpclient.New(rategovernor.NewGovernedDoer(http.DefaultClient, governor, httpclient.ProfileHTML))
	rssClient := httpclient.New(rategovernor.NewGovernedDoer(http.DefaultClient, governor, httpclient.ProfileRSS))

	ex := extractor.New([]extractor.Transport{
		extractor.PersistentBrowserTransport,
		extractor.PerURLBrowserTransport,
		extractor.FastHeadlessTransport,
		extractor.NewHTTPTransport(htmlClient),
	}, log)

	providers := []provider.Provider{
		provider.NewRSS(rssClient, recipes, log),
		provider.NewConfigurable(htmlClient, recipes, ex, log),
	}

	dedupCfg := dedup.DefaultNearDuplicateConfig()
	orch := orchestrator.New(providers, dedupCfg, nil, log)
	coord := coordinator.New(st, orch, dedupCfg, log)

	budgets := orchestrator.Budgets{MaxKeywordsPerRun: 50, MaxTotalURLsPerRun: 200, RunBudget: 15 * time.Minute}
	runID, inserted, err := coord.Run(context.Background(), brandID, coordinator.TriggerAPI, budgets)
	if err != nil {
		log.Error("scrape brand", "brand_id", brandID, "error", err)
		os.Exit(1)
	}

	log.Info("scrape complete", "brand_id", brandID, "run_id", runID, "mentions_inserted", inserted)
}

// runDeriveRecipeCommand derives a SourceRecipe for domain from a sample
// article URL and persists it, reporting the confidence an operator should
// weigh before trusting the recipe unattended.
func runDeriveRecipeCommand(dbPath string, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: scraperctl derive-recipe <domain> <sample-article-url>")
		os.Exit(1)
	}
	domain, sampleURL := args[0], args[1]

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	db, err := store.Open(dbPath)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	recipes := recipe.New(db)
	governor := rategovernor.New(rategovernor.DefaultConfig())
	htmlClient := httpclient.New(rategovernor.NewGovernedDoer(http.DefaultClient, governor, httpclient.ProfileHTML))
	analyzer := recipeanalyzer.New(htmlClient, log)

	r, err := analyzer.AnalyzeAndUpsert(context.Background(), recipes, domain, sampleURL, "news")
	if err != nil {
		log.Error("derive recipe", "domain", domain, "error", err)
		os.Exit(1)
	}

	log.Info("recipe derived",
		"domain", r.Domain,
		"title_selector", r.TitleSelector,
		"content_selector", r.ContentSelector,
		"date_selector", r.DateSelector,
		"search_url_pattern", r.SearchURLPattern,
		"discovery_type", r.DiscoveryType,
	)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
