package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gobayes/adapters/excel"
	"gobayes/adapters/store"
	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal/api"
	"gobayes/internal/config"
	"gobayes/internal/container"
	"gobayes/internal/inference"
	"gobayes/internal/report"
	"gobayes/internal/worker"
)

type fitFlags struct {
	successes  int
	trials     int
	file       string
	column     string
	sheet      string
	components int
	options    string
	seed       uint64
	format     string
	save       bool
}

func newFitCmd() *cobra.Command {
	var f fitFlags

	cmd := &cobra.Command{
		Use:   "fit <model-type>",
		Short: "Fit a posterior to counts or a column of observations",
		Long: `Fit a posterior and print its summary.

Examples:
  gobayes fit beta-binomial --successes 30 --trials 100
  gobayes fit normal-mixture --file data.xlsx --column revenue --components 2 --format markdown
  gobayes fit zero-inflated-lognormal --file orders.csv --column value --options opts.yaml --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}
			opts := domain.FitOptions{}
			if f.options != "" {
				if opts, err = config.LoadFitOptions(f.options); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("seed") {
				opts.Seed = f.seed
			}
			return runFit(cmd.Context(), cmd.OutOrStdout(), domain.ModelType(args[0]), in, opts, f.format, f.save)
		},
	}

	cmd.Flags().IntVar(&f.successes, "successes", 0, "Number of successes (beta-binomial)")
	cmd.Flags().IntVar(&f.trials, "trials", 0, "Number of trials (beta-binomial)")
	cmd.Flags().StringVar(&f.file, "file", "", "Excel (.xlsx) or CSV file with observations")
	cmd.Flags().StringVar(&f.column, "column", "", "Column header to read from --file")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet to read (defaults to the first)")
	cmd.Flags().IntVar(&f.components, "components", 0, "Mixture component count")
	cmd.Flags().StringVar(&f.options, "options", "", "YAML file with fit options")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Seed for the fit's random streams")
	cmd.Flags().StringVar(&f.format, "format", "json", "Output format: json, markdown or html")
	cmd.Flags().BoolVar(&f.save, "save", false, "Persist the fit to the configured database")
	cmd.MarkFlagsMutuallyExclusive("successes", "file")
	cmd.MarkFlagsRequiredTogether("file", "column")

	return cmd
}

func (f fitFlags) input() (domain.DataInput, error) {
	if f.file == "" {
		return domain.NewBinomialInput(f.successes, f.trials), nil
	}
	table, err := excel.NewDataReader(f.file).WithSheet(f.sheet).ReadData()
	if err != nil {
		return domain.DataInput{}, err
	}
	values, err := table.Column(f.column)
	if err != nil {
		return domain.DataInput{}, err
	}
	return domain.NewValuesInput(values, f.components), nil
}

func runFit(ctx context.Context, out io.Writer, modelType domain.ModelType, in domain.DataInput, opts domain.FitOptions, format string, save bool) error {
	switch format {
	case "json", "markdown", "html":
	default:
		return core.NewInvalidDataError("format", fmt.Sprintf("must be json, markdown or html (got %q)", format))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	var copts []container.Option
	if !save {
		copts = append(copts, container.WithoutDatabase())
	}
	c, err := container.New(ctx, cfg, copts...)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	rec, err := c.FitService.Fit(ctx, worker.FitRequest{ModelType: modelType, Input: in, Options: opts}, save)
	if err != nil {
		return err
	}

	switch format {
	case "markdown":
		_, err = io.WriteString(out, report.Markdown(rec))
	case "html":
		_, err = out.Write(report.HTML(rec))
	default:
		snap, serr := inference.EncodePosterior(rec.Posterior)
		if serr != nil {
			return serr
		}
		err = writeJSON(out, struct {
			*domain.FitRecord
			Posterior inference.Snapshot `json:"posterior"`
		}{rec, snap})
	}
	return err
}

func newSampleCmd() *cobra.Command {
	var count int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "sample <fit-id>",
		Short: "Draw posterior samples from a saved fit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseFitID(args[0])
			if err != nil {
				return core.NewInvalidDataError("fit-id", err.Error())
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := container.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			samples, err := c.FitService.Sample(cmd.Context(), id, count, seed, func(f float64) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\rsampling %3.0f%%", f*100)
			})
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"samples": samples})
		},
	}

	cmd.Flags().IntVar(&count, "count", 1000, "Number of samples to draw")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for a reproducible draw")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := store.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			m := store.NewMigrator(db)
			out := cmd.OutOrStdout()
			if status {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied " + s.AppliedAt
					}
					fmt.Fprintf(out, "%s %-32s %s\n", s.Version, s.Name, state)
				}
				return nil
			}

			applied, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "database is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(out, "applied %s\n", v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "List migrations instead of applying them")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the ops endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := container.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			return api.Serve(ctx, cfg.Server, c.FitService, c.Logger)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
