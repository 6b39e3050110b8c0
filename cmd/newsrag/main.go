// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/newsrag"
	"github.com/poiesic/newsrag/config"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/ingestion"
	"github.com/poiesic/newsrag/scrape"
	"github.com/poiesic/newsrag/search"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "newsrag",
		Usage: "Scrape a news site, embed its articles and answer questions about them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (built-in defaults when omitted)",
				EnvVars: []string{"NEWSRAG_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides logging.level",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "scrape",
				Usage:  "Collect articles and images from the configured site",
				Action: scrapeCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-articles",
						Usage: "Stop after discovering this many articles (0 uses scraping.max_articles)",
					},
					&cli.BoolFlag{
						Name:  "browser",
						Usage: "Use headless Chrome for load-more listings",
					},
				},
			},
			{
				Name:   "build-db",
				Usage:  "Embed scraped articles into the vector store",
				Action: buildDBCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report progress on stderr",
						Value: true,
					},
				},
			},
			{
				Name:   "serve-ui",
				Usage:  "Serve the query API over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (empty uses server.addr)",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Answer one question from the indexed articles",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Number of results to retrieve (0 uses retrieval.result_count)",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum similarity (negative uses retrieval.similarity_threshold)",
						Value: -1,
					},
					&cli.StringFlag{
						Name:  "modality",
						Usage: "Restrict retrieval to text or image records",
					},
					&cli.BoolFlag{
						Name:  "summarize",
						Usage: "Print a short summary of each retrieved article",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Log each retrieval step at debug level",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show article, ledger and vector counts",
				Action: statsCommand,
			},
		},
	}
}

// setup loads the configuration and installs the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg

	level := cfg.Logging.Level
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	return setupLogger(level)
}

func setupLogger(levelStr string) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

// openDatabase returns the loaded config's stores and a context cancelled on SIGINT/SIGTERM.
func openDatabase(c *cli.Context) (*newsrag.Database, context.Context, context.CancelFunc, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: configuration not loaded", core.ErrConfiguration)
	}
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	db, err := newsrag.Open(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, ctx, cancel, nil
}

func scrapeCommand(c *cli.Context) error {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if ok {
		if n := c.Int("max-articles"); n > 0 {
			cfg.Scraping.MaxArticles = n
		}
		if c.Bool("browser") {
			cfg.Scraping.Browser = true
		}
	}

	db, ctx, cancel, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer db.Close()

	scraper, err := db.NewScraper()
	if err != nil {
		return fmt.Errorf("failed to create scraper: %w", err)
	}

	report, err := scraper.Run(ctx)
	if report != nil {
		printScrapeReport(c, report)
	}
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	return nil
}

func printScrapeReport(c *cli.Context, r *scrape.Report) {
	w := c.App.Writer
	fmt.Fprintf(w, "Discovered:     %d\n", r.Discovered)
	fmt.Fprintf(w, "Saved:          %d\n", r.Saved)
	fmt.Fprintf(w, "Skipped:        %d\n", r.Skipped)
	fmt.Fprintf(w, "Failed:         %d (%d unparseable)\n", r.Failed, r.ParseFailures)
	fmt.Fprintf(w, "Failed pages:   %d\n", r.FailedPages)
	fmt.Fprintf(w, "Images:         %d (%d failed)\n", r.Images, r.ImageFailures)
	fmt.Fprintf(w, "Duration:       %s\n", r.Duration.Round(time.Millisecond))
}

func buildDBCommand(c *cli.Context) error {
	db, ctx, cancel, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer db.Close()

	var opts []ingestion.Option
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(c.App.ErrWriter))
	}
	pipeline, err := db.NewIngestionPipeline(opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	cfg := db.Config()
	fmt.Fprintf(c.App.ErrWriter, "Vector store: %s\n", cfg.Database.Path)
	fmt.Fprintf(c.App.ErrWriter, "Articles: %s\n", cfg.Database.ArticlesPath)
	fmt.Fprintf(c.App.ErrWriter, "Text model: %s\n", cfg.Models.TextModel)
	fmt.Fprintf(c.App.ErrWriter, "Image model: %s\n", cfg.Models.ImageModel)
	fmt.Fprintln(c.App.ErrWriter)

	result, err := pipeline.Run(ctx)
	if result != nil {
		w := c.App.Writer
		fmt.Fprintf(w, "Articles:       %d\n", result.Total)
		fmt.Fprintf(w, "Ingested:       %d\n", result.Ingested)
		fmt.Fprintf(w, "Resumed:        %d\n", result.Resumed)
		fmt.Fprintf(w, "Skipped:        %d\n", result.Skipped)
		fmt.Fprintf(w, "Failed:         %d\n", result.Failed)
		fmt.Fprintf(w, "Text records:   %d\n", result.TextRecords)
		fmt.Fprintf(w, "Image records:  %d (%d failed)\n", result.ImageRecords, result.ImageFailures)
		fmt.Fprintf(w, "Duration:       %s\n", result.Duration.Round(time.Millisecond))
	}
	if err != nil {
		return fmt.Errorf("build-db failed: %w", err)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	db, ctx, cancel, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer db.Close()

	srv, err := db.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr := c.String("addr")
	if addr == "" {
		addr = db.Config().Server.Addr
	}
	return srv.ListenAndServe(ctx, addr)
}

func queryCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	db, ctx, cancel, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer db.Close()

	var opts []search.AnswerOption
	if c.Bool("trace") {
		opts = append(opts, search.WithMonitor(&search.LogMonitor{Logger: slog.Default()}))
	}
	answerer, err := db.NewAnswerer(opts...)
	if err != nil {
		return fmt.Errorf("failed to create answerer: %w", err)
	}

	q := answerer.Query(question)
	if n := c.Int("limit"); n > 0 {
		q.Limit = n
	}
	if t := c.Float64("threshold"); t >= 0 {
		q.Threshold = float32(t)
	}
	if m := c.String("modality"); m != "" {
		if q.Modality, err = core.ParseModality(m); err != nil {
			return err
		}
	}

	answer, err := answerer.AnswerQuery(ctx, q)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintln(w, answer.Text)
	if len(answer.Results) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, r := range answer.Results {
		meta := r.Record.Metadata
		fmt.Fprintf(w, "%d. [%s %.2f] %s\n   %s\n", i+1, r.Modality(), r.Score, meta.Title, meta.URL)
		if meta.ImageURL != "" {
			fmt.Fprintf(w, "   image: %s\n", meta.ImageURL)
		}
		if c.Bool("summarize") {
			summary, err := answerer.Summarize(ctx, r)
			if err != nil {
				slog.Warn("summary failed", "url", meta.URL, "err", err)
				continue
			}
			fmt.Fprintf(w, "   %s\n", summary)
		}
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	db, ctx, cancel, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer db.Close()

	stats, err := db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Articles:       %d\n", stats.Articles)
	fmt.Fprintf(w, "Ingested:       %d\n", stats.Ingested)
	for _, m := range core.Modalities {
		fmt.Fprintf(w, "%-15s %d", m.String()+" records:", stats.Vectors.Records[m])
		if dim, ok := stats.Vectors.Dimensions[m]; ok {
			fmt.Fprintf(w, " (dim %d)", dim)
		}
		fmt.Fprintln(w)
	}
	return nil
}
