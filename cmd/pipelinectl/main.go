// Command pipelinectl inspects the persisted board collection with the same
// configuration and storage backends as the API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pipeline/internal/app"
	"pipeline/internal/config"
	"pipeline/internal/export"
	"pipeline/internal/logging"
	"pipeline/internal/store"
)

// errViolations makes the process exit non-zero without printing usage.
var errViolations = errors.New("board invariants violated")

type cli struct {
	cfg config.Config
	out io.Writer
}

func main() {
	if err := newRootCmd(config.Load(), os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config, out io.Writer) *cobra.Command {
	c := &cli{cfg: cfg, out: out}
	root := &cobra.Command{
		Use:           "pipelinectl",
		Short:         "Inspect and export sales pipeline boards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.Setup(c.cfg.LogLevel, c.cfg.LogFormat)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.cfg.Store, "store", cfg.Store, "Storage backend: memory, redis, postgres or git")
	root.PersistentFlags().StringVar(&c.cfg.GitDir, "git-dir", cfg.GitDir, "Repository directory for the git backend")
	root.PersistentFlags().StringVar(&c.cfg.LogLevel, "log-level", "warn", "Log level")

	root.AddCommand(c.boardsCmd(), c.checkCmd(), c.exportCmd(), c.tagsCmd())
	return root
}

// open loads the persisted state without seeding, so a read never writes.
func (c *cli) open(ctx context.Context) (*app.Service, func(), error) {
	kv, err := store.Open(ctx, store.Options{
		Backend:       c.cfg.Store,
		RedisURL:      c.cfg.RedisURL,
		DatabaseURL:   c.cfg.DatabaseURL,
		MigrationsDir: c.cfg.MigrationsDir,
		GitDir:        c.cfg.GitDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", c.cfg.Store, err)
	}
	cfg := c.cfg
	cfg.Seed = false
	svc := app.New(cfg, kv, app.Dependencies{})
	if err := svc.Bootstrap(ctx); err != nil {
		_ = kv.Close()
		return nil, nil, err
	}
	return svc, func() { _ = kv.Close() }, nil
}

func (c *cli) boardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List boards with card counts and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNOME\tCARDS\tTOTAL")
			for _, board := range svc.ListBoards() {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", board.BoardID, board.Name, board.Cards, export.FormatMoney(board.Total))
				for _, stage := range board.Stages {
					fmt.Fprintf(w, "\t  %d. %s\t%d\t%s\n", stage.Order, stage.Name, stage.Cards, export.FormatMoney(stage.Total))
				}
			}
			return w.Flush()
		},
	}
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the stored boards and exit 1 on any violation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			violations := svc.Violations()
			for _, v := range violations {
				fmt.Fprintln(c.out, v.String())
			}
			if len(violations) > 0 {
				log.WithField("violations", len(violations)).Error("check failed")
				return errViolations
			}
			fmt.Fprintf(c.out, "ok: %d board(s) consistent\n", len(svc.ListBoards()))
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		format    string
		outPath   string
		noThreads bool
	)
	cmd := &cobra.Command{
		Use:     "export <boardID>",
		Short:   "Export a board report",
		Example: "  pipelinectl export 1712345678901 --format yaml --out board.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid board id %q", args[0])
			}
			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, closeFn, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := svc.ExportBoard(cmd.Context(), boardID, parsed, !noThreads)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = result.Filename
			}
			if outPath == "-" {
				_, err = c.out.Write(result.Data)
				return err
			}
			if err := os.WriteFile(outPath, result.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(c.out, "exported %s (%d bytes)\n", outPath, len(result.Data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml, html, pdf or docx")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file, - for stdout (default: board name)")
	cmd.Flags().BoolVar(&noThreads, "no-thread", false, "Leave card threads out of the report")
	return cmd
}

func (c *cli) tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List action tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDEM\tID\tNOME\tCOR")
			for _, tag := range svc.ActionTags() {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", tag.Order, tag.ID, tag.Name, tag.Color)
			}
			return w.Flush()
		},
	}
}
