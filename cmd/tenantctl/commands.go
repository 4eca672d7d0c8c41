package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/bootstrap"
	"github.com/dalemusser/tenanthub/internal/app/system/authutil"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// opener connects to the configured backend.
type opener func(ctx context.Context, cfg bootstrap.AppConfig, log *zap.Logger) (bootstrap.DBDeps, error)

func openStore(ctx context.Context, cfg bootstrap.AppConfig, log *zap.Logger) (bootstrap.DBDeps, error) {
	if err := bootstrap.ValidateConfig(nil, cfg, log); err != nil {
		return bootstrap.DBDeps{}, err
	}
	return bootstrap.ConnectDB(ctx, nil, cfg, log)
}

type globalFlags struct {
	backend  string
	mongoURI string
	database string
	verbose  bool
	jsonOut  bool
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd(open opener) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Maintenance commands for tenanthub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.backend, "backend", envOr("TENANTHUB_STORE_BACKEND", bootstrap.BackendMongo), "store backend: mongo or memory")
	pf.StringVar(&g.mongoURI, "mongo-uri", envOr("TENANTHUB_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	pf.StringVar(&g.database, "database", envOr("TENANTHUB_MONGO_DATABASE", "master_db"), "master database name")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")
	pf.BoolVar(&g.jsonOut, "json", false, "print JSON instead of a table")

	root.AddCommand(
		newListCmd(g, open),
		newOrphansCmd(g, open),
		newReconcileCmd(g, open),
	)
	return root
}

// session opens the store and builds a manager with no worker.
func (g *globalFlags) session(cmd *cobra.Command, open opener) (*tenancy.Manager, func(), error) {
	logger := zap.NewNop()
	if g.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, nil, err
		}
		logger = l
	}

	cfg := bootstrap.AppConfig{
		StoreBackend:  g.backend,
		MongoURI:      g.mongoURI,
		MongoDatabase: g.database,

		// Not used for maintenance but required by validation and wiring.
		JWTSecret:          "tenantctl",
		JWTExpires:         time.Minute,
		SaltRounds:         authutil.DefaultCost,
		MigrationBatchSize: 1000,
		AuditLogAuth:       "off",
		AuditLogAdmin:      "all",
	}

	deps, err := open(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := bootstrap.NewServices(cfg, deps, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
		defer cancel()
		_ = bootstrap.Shutdown(ctx, nil, cfg, deps, logger)
		_ = logger.Sync()
	}
	return svc.Manager, closeFn, nil
}

func (g *globalFlags) print(w io.Writer, v any, table func(*tabwriter.Writer)) error {
	if g.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func newListCmd(g *globalFlags, open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List organizations and their tenant collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, closeFn, err := g.session(cmd, open)
			if err != nil {
				return err
			}
			defer closeFn()

			orgs, err := mgr.List(cmd.Context())
			if err != nil {
				return err
			}
			return g.print(cmd.OutOrStdout(), orgs, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "NAME\tCOLLECTION\tID\tCREATED")
				for _, o := range orgs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Name, o.CollectionName, o.ID.Hex(), o.CreatedAt.Format(time.RFC3339))
				}
			})
		},
	}
}

func newOrphansCmd(g *globalFlags, open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "Report tenant collections no organization references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, closeFn, err := g.session(cmd, open)
			if err != nil {
				return err
			}
			defer closeFn()

			orphans, err := mgr.Orphans(cmd.Context())
			if err != nil {
				return err
			}
			if orphans == nil {
				orphans = []string{}
			}
			return g.print(cmd.OutOrStdout(), orphans, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "COLLECTION")
				for _, name := range orphans {
					fmt.Fprintln(tw, name)
				}
			})
		},
	}
}

func newReconcileCmd(g *globalFlags, open opener) *cobra.Command {
	var opts tenancy.ReconcileOptions

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair interrupted lifecycle operations and sweep orphaned collections",
		Long: `Runs one reconciliation pass, the same one the server runs on its schedule.

Operations still marked running and older than --stale-after are rolled back
or completed depending on how far they got. Use --stale-after 0 only when no
server is running against the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, closeFn, err := g.session(cmd, open)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.Reconcile())
			defer cancel()

			report, runErr := mgr.Reconcile(ctx, opts)
			if err := g.print(cmd.OutOrStdout(), report, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "OP\tKIND\tSTEP\tACTION")
				for _, r := range report.Repairs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.OpID, r.Kind, r.Step, r.Action)
				}
				fmt.Fprintf(tw, "\norphans: %d, dropped: %d, purged: %d\n", len(report.Orphans), len(report.Dropped), report.Purged)
			}); err != nil {
				return err
			}
			return runErr
		},
	}

	f := cmd.Flags()
	f.DurationVar(&opts.StaleAfter, "stale-after", 10*time.Minute, "only repair operations idle at least this long")
	f.BoolVar(&opts.DropOrphans, "drop-orphans", false, "drop unreferenced tenant collections")
	f.DurationVar(&opts.PurgeAfter, "purge-after", 0, "delete finished journal entries older than this (0 keeps them)")
	return cmd
}
