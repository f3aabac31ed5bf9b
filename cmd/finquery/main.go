package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zen-systems/finquery/pkg/config"
	"github.com/zen-systems/finquery/pkg/router"
	"github.com/zen-systems/finquery/pkg/server"
)

var (
	configFile string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "finquery",
		Short: "Answer financial questions by routing them to specialised handlers",
		Long: `finquery classifies each question, runs the handlers whose confidence
	clears their threshold (database lookup, web search, charting, conversation)
	and synthesizes one answer from their results.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.finquery/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(handlersCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := newLogger(os.Stdout, cfg.Level(), true)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.orch,
				server.WithRunLookup(a.store),
				server.WithWorkers(cfg.Server.Workers),
				server.WithVisualizationDir(cfg.Visualization.Dir),
				server.WithCORSOrigin(cfg.Server.CORSOrigin),
				server.WithRequestTimeout(cfg.Server.RequestTimeout),
				server.WithLogger(logger),
			)
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func askCmd() *cobra.Command {
	var handlerFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question",
		Long: `Routes the question to the handlers whose confidence clears their
	threshold and prints the synthesized answer.

	Use --handler to skip routing and run a single handler.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := newLogger(os.Stderr, cfg.Level(), false)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.orch.ProcessQuestion(ctx, question, handlerFlag)
			if err != nil {
				return err
			}

			if jsonFlag {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Fprintf(os.Stderr, "Handlers: %s\n", strings.Join(out.Decision.Selected, ", "))
			fmt.Println(out.FinalAnswer)
			if out.Artifacts.VisualizationPath != "" {
				fmt.Fprintf(os.Stderr, "Chart saved to %s\n", out.Artifacts.VisualizationPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&handlerFlag, "handler", "", "run only this handler (database_query, google_search, visualize, conversation)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the full run outcome as JSON")
	return cmd
}

func routeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route [question]",
		Short: "Show how a question would be routed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := newLogger(os.Stderr, cfg.Level(), false)

			adapters, err := createAdapters(cfg)
			if err != nil {
				return fmt.Errorf("failed to create adapters: %w", err)
			}
			r, closeRouter, err := buildRouter(cfg, adapters, logger)
			if err != nil {
				return err
			}
			defer closeRouter()

			decision := r.DetailedRouting(context.Background(), strings.Join(args, " "))
			return printDecision(os.Stdout, decision)
		},
	}
}

func handlersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List registered handlers and their thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			registry, err := router.RegistryFromConfig(cfg.Handlers, cfg.Fallback)
			if err != nil {
				return err
			}
			return printRegistry(os.Stdout, registry)
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List model aliases and adapter status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return printModels(os.Stdout, cfg)
		},
	}
}

func printDecision(out io.Writer, d *router.Decision) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLER\tCONFIDENCE\tTHRESHOLD\tSELECTED")
	for _, s := range d.Scores {
		selected := ""
		if s.Selected {
			selected = "yes"
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%s\n", s.Name, s.Confidence, s.Threshold, selected)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSelected: %s\n", strings.Join(d.Selected, ", "))
	if d.ClassifierError != "" {
		fmt.Fprintf(out, "Classifier error: %s\n", d.ClassifierError)
	}
	return nil
}

func printRegistry(out io.Writer, registry *router.Registry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLER\tTHRESHOLD\tDESCRIPTION")
	for _, spec := range registry.Specs() {
		name := spec.Name
		if name == registry.Fallback() {
			name += " (fallback)"
		}
		fmt.Fprintf(w, "%s\t%.2f\t%s\n", name, spec.Threshold, spec.Description)
	}
	return w.Flush()
}

func printModels(out io.Writer, cfg *config.Config) error {
	aliases := cfg.ModelAliases()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL\tPROVIDER\tSTATUS")
	for _, alias := range aliases.ListAliases() {
		model := aliases.Resolve(alias)
		provider := aliases.ProviderForModel(model)
		status := "no key"
		if cfg.HasAdapter(provider) {
			status = "ready"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", alias, model, provider, status)
	}
	return w.Flush()
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}
