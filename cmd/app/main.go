package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/othala/internal"
	"github.com/starford/othala/internal/export"
	"github.com/starford/othala/internal/store"
	pkgconfig "github.com/starford/othala/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func exportSnapshot(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.String("out")
	if !cmd.Bool("force") {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s exists, pass --force to overwrite", out)
		}
	}

	s, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.Write(f, s); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Writer, "exported to %s\n", out)
	return nil
}

func importSnapshot(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Bool("force") {
		if _, err := os.Stat(cfg.SQLite.Path); err == nil {
			return fmt.Errorf("%s exists, pass --force to import into it", cfg.SQLite.Path)
		}
	}

	f, err := os.Open(cmd.String("in"))
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := export.Read(f, s); err != nil {
		return err
	}
	fmt.Fprintln(cmd.Writer, "import complete")
	return nil
}

func reindex(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Reindex(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.Writer, "reindex complete")
	return nil
}

func explain(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.ExplainSearchPlans(cmd.Writer)
}

func newRootCommand() *cli.Command {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "othala",
		Usage:  "Personal note store with subjects, task tracking, full-text search, and undo history",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serve,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "export",
				Usage:  "Write a full JSON snapshot of the store",
				Action: exportSnapshot,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "out", Usage: "Snapshot file to write", Value: "othala-snapshot.json"},
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing snapshot file"},
				},
			},
			{
				Name:   "import",
				Usage:  "Replay a JSON snapshot into the store",
				Action: importSnapshot,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "in", Usage: "Snapshot file to read", Required: true},
					&cli.BoolFlag{Name: "force", Usage: "Import into an existing database"},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the term index and full-text document index from stored notes",
				Action: reindex,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "explain",
				Usage:  "Print the query plans of the note search variants",
				Action: explain,
				Flags:  []cli.Flag{configFlag},
			},
		},
	}
	return cmd
}

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
