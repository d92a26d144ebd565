package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/codegraph/codegraph/internal/config"
	"github.com/codegraph/codegraph/internal/graph"
	"github.com/codegraph/codegraph/internal/ingest"
	"github.com/codegraph/codegraph/internal/store"
	"github.com/codegraph/codegraph/internal/tools"
	"github.com/codegraph/codegraph/internal/watcher"
)

var version = "dev"

var (
	flagConfig  string
	flagDB      string
	flagCorpus  string
	flagVerbose bool

	cfg config.Config
)

func main() {
	root := &cobra.Command{
		Use:     "codegraph",
		Short:   "Semantic code graph engine",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagDB != "" {
				cfg.DBPath = flagDB
			}
			if flagCorpus != "" {
				cfg.Corpus = flagCorpus
			}
			return nil
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "codegraph.yaml", "config file path")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "sqlite database path")
	root.PersistentFlags().StringVar(&flagCorpus, "corpus", "", "corpus tag")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(indexCmd(), queryCmd(), schemaCmd(), watchCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() (*store.Store, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <root-path>",
		Short: "Rebuild the code graph for a source tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ing := ingest.New(s)
			ing.Workers = cfg.Workers
			ing.IgnoreFile = cfg.IgnoreFile
			stats, err := ing.Ingest(cmd.Context(), args[0], cfg.Corpus)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <definitions|callers|attr-callers|dependents> <name-or-path>",
		Short: "Query the code graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			eng := graph.New(s)
			ctx := cmd.Context()
			var paths []string
			switch args[0] {
			case "definitions":
				paths = eng.DefinitionsOf(ctx, cfg.Corpus, args[1])
			case "callers":
				paths = eng.CallersOf(ctx, cfg.Corpus, args[1])
			case "attr-callers":
				paths = eng.AttributeCallersOf(ctx, cfg.Corpus, args[1])
			case "dependents":
				paths = eng.DependentsOf(ctx, cfg.Corpus, args[1])
			default:
				return fmt.Errorf("unknown query kind: %s", args[0])
			}
			return printJSON(paths)
		},
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show node and edge counts for the corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			labels, err := s.CountNodesByLabel(cfg.Corpus)
			if err != nil {
				return err
			}
			types, err := s.CountEdgesByType(cfg.Corpus)
			if err != nil {
				return err
			}
			out := map[string]any{
				"corpus":      cfg.Corpus,
				"node_labels": labels,
				"edge_types":  types,
			}
			if c, getErr := s.GetCorpus(cfg.Corpus); getErr == nil && c != nil {
				out["root_path"] = c.RootPath
				out["indexed_at"] = c.IndexedAt
				out["fingerprint"] = c.Fingerprint
			}
			return printJSON(out)
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll indexed corpora and rebuild on change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			w := watcher.New(s, func(ctx context.Context, corpus, rootPath string) error {
				ing := ingest.New(s)
				ing.Workers = cfg.Workers
				ing.IgnoreFile = cfg.IgnoreFile
				_, ingErr := ing.Ingest(ctx, rootPath, corpus)
				return ingErr
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			slog.Info("watch.start", "db", cfg.DBPath)
			w.Run(ctx)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the code graph over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}

			srv := tools.NewServer(s, cfg.Corpus, cfg.Workers)
			runErr := srv.MCPServer().Run(cmd.Context(), &mcp.StdioTransport{})
			s.Close()
			return runErr
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
