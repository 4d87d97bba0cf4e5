package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/approvisionnement/cmd/approctl/cli"
	"github.com/odyssey-erp/approvisionnement/internal/app"
	"github.com/odyssey-erp/approvisionnement/internal/platform/db"
	"github.com/odyssey-erp/approvisionnement/internal/procurement"
	"github.com/odyssey-erp/approvisionnement/jobs"
)

// deps resolves collaborators lazily so commands only connect to what
// they use.
type deps struct {
	service func(ctx context.Context) (*procurement.Service, func(), error)
	jobs    func() (*cli.JobsCLI, error)
	migrate func(ctx context.Context) error
}

func defaultDeps() deps {
	load := func() (*app.Config, *slog.Logger, error) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return nil, nil, err
		}
		return cfg, app.NewLogger(cfg), nil
	}
	return deps{
		service: func(ctx context.Context) (*procurement.Service, func(), error) {
			cfg, logger, err := load()
			if err != nil {
				return nil, nil, err
			}
			backends, err := app.OpenBackends(ctx, cfg, logger)
			if err != nil {
				return nil, nil, err
			}
			return procurement.NewService(backends.Store, backends.Catalog, procurement.WithLogger(logger)), backends.Close, nil
		},
		jobs: func() (*cli.JobsCLI, error) {
			cfg, _, err := load()
			if err != nil {
				return nil, err
			}
			opts, err := app.QueueRedis(cfg)
			if err != nil {
				return nil, err
			}
			return cli.NewJobsCLI(opts), nil
		},
		migrate: func(ctx context.Context) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != app.StorePostgres {
				return fmt.Errorf("migrate requires STORE_DRIVER=%s, got %q", app.StorePostgres, cfg.StoreDriver)
			}
			pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
			if err != nil {
				return err
			}
			defer pool.Close()
			return procurement.NewPostgresStore(pool).Migrate(ctx)
		},
	}
}

func newRootCmd(rt deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "approctl",
		Short:         "Operate the approvisionnement service from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newNextRefCmd(rt),
		newListCmd(rt),
		newStatsCmd(rt),
		newExportCmd(rt),
		newMigrateCmd(rt),
		newJobsCmd(rt),
	)
	return root
}

func bindFilters(cmd *cobra.Command, f *procurement.Filters) {
	flags := cmd.Flags()
	flags.StringVar(&f.Search, "search", "", "match reference or supplier name")
	flags.StringVar(&f.SupplierID, "fournisseur", "", "supplier id or name")
	flags.StringVar((*string)(&f.Status), "statut", "", "status filter")
	flags.StringVar(&f.DateFrom, "from", "", "earliest date, YYYY-MM-DD")
	flags.StringVar(&f.DateTo, "to", "", "latest date, YYYY-MM-DD")
}

func withService(cmd *cobra.Command, rt deps, fn func(*procurement.Service) error) error {
	svc, closeFn, err := rt.service(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}

func newNextRefCmd(rt deps) *cobra.Command {
	return &cobra.Command{
		Use:   "next-ref",
		Short: "Print the reference the next record would receive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, rt, func(svc *procurement.Service) error {
				ref, err := svc.NextReference(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), ref)
				return err
			})
		},
	}
}

func newListCmd(rt deps) *cobra.Command {
	var (
		filters procurement.Filters
		page    int
		perPage int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records one page at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, rt, func(svc *procurement.Service) error {
				res, err := svc.List(cmd.Context(), procurement.ListRequest{Filters: filters, Page: page, PerPage: perPage})
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), res)
			})
		},
	}
	bindFilters(cmd, &filters)
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", procurement.DefaultPageSize, "records per page")
	return cmd
}

func printRecords(w io.Writer, res procurement.ListResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REFERENCE\tDATE\tFOURNISSEUR\tMONTANT\tSTATUT")
	for _, rec := range res.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", rec.Reference, rec.Date, rec.SupplierName, rec.TotalAmount, rec.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, res.Info)
	return err
}

func newStatsCmd(rt deps) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise amounts and statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, rt, func(svc *procurement.Service) error {
				st, err := svc.Stats(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "total: %.2f\n", st.TotalAmount)
				fmt.Fprintf(out, "records: %d (en attente %d, reçus %d, annulés %d)\n", st.Count, st.Pending, st.Received, st.Cancelled)
				if st.Principal.Name != "" {
					fmt.Fprintf(out, "top supplier: %s %.2f (%.1f%%)\n", st.Principal.Name, st.Principal.Amount, st.Principal.Percentage)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "earliest date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "latest date, YYYY-MM-DD")
	return cmd
}

func newExportCmd(rt deps) *cobra.Command {
	var (
		filters procurement.Filters
		format  string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write matching records as csv or xlsx",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != procurement.FormatCSV && format != procurement.FormatXLSX {
				return fmt.Errorf("unsupported format %q", format)
			}
			return withService(cmd, rt, func(svc *procurement.Service) error {
				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				n, err := svc.Export(cmd.Context(), w, format, filters)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d records exported\n", n)
				return nil
			})
		},
	}
	bindFilters(cmd, &filters)
	cmd.Flags().StringVar(&format, "format", procurement.FormatCSV, "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "destination file, - for stdout")
	return cmd
}

func newMigrateCmd(rt deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.migrate == nil {
				return errors.New("migrate: not available")
			}
			if err := rt.migrate(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return err
		},
	}
}

func newJobsCmd(rt deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue and inspect background jobs",
	}

	var (
		invalidate bool
		export     jobs.RecordsExportPayload
	)
	trigger := &cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskCatalogWarmup, jobs.TaskRecordsExport},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rt.jobs()
			if err != nil {
				return err
			}
			defer c.Close()
			info, err := c.Trigger(cmd.Context(), args[0], cli.TriggerOptions{Invalidate: invalidate, Export: export})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return err
		},
	}
	trigger.Flags().BoolVar(&invalidate, "invalidate", false, "drop cached catalog entries before warming")
	trigger.Flags().StringVar(&export.Format, "format", procurement.FormatCSV, "export format")
	trigger.Flags().StringVar(&export.Search, "search", "", "export search filter")
	trigger.Flags().StringVar(&export.SupplierID, "fournisseur", "", "export supplier filter")
	trigger.Flags().StringVar(&export.Status, "statut", "", "export status filter")
	trigger.Flags().StringVar(&export.DateFrom, "from", "", "export earliest date")
	trigger.Flags().StringVar(&export.DateTo, "to", "", "export latest date")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := rt.jobs()
			if err != nil {
				return err
			}
			defer c.Close()
			st, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				st.Queue, st.Pending, st.Active, st.Scheduled, st.Retry)
			return err
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}
