package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"lucidodm/src/engine"
	"lucidodm/src/helpers"
	"lucidodm/src/lucid"
	"lucidodm/src/settings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cliFlags struct {
	configFile string
	driver     string
	dataDir    string
	debug      bool
}

// session is the store and registry a command runs against.
type session struct {
	args     *settings.Arguments
	logger   *zap.SugaredLogger
	store    engine.Store
	registry *lucid.Registry
}

func openSession(ctx context.Context, flags *cliFlags) (*session, error) {
	args, err := settings.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.driver != "" {
		args.Driver = flags.driver
	}
	if flags.dataDir != "" {
		args.DataDir = flags.dataDir
	}
	if flags.debug {
		args.Debug = true
	}
	if err := args.Validate(); err != nil {
		return nil, err
	}

	logger, err := helpers.NewLogger(args)
	if err != nil {
		return nil, err
	}
	if args.Verbose {
		logger.Infow("lucidodm starting",
			"driver", args.Driver, "dataDir", args.DataDir, "config", args.ConfigFile)
	}

	store, err := engine.OpenStore(ctx, args, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", args.Driver, err)
	}
	registry := lucid.NewRegistry(store, logger, lucid.WithIDGenerator(helpers.NewIDGenerator(args.IDStrategy)))
	return &session{args: args, logger: logger, store: store, registry: registry}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.store.Close(ctx); err != nil {
		s.logger.Errorw("failed to close store", "error", err)
	}
	_ = s.logger.Sync()
}

// query builds a model query over collection from a where expression such as
// "age > 20 AND vip == true".
func (s *session) query(collection, where string) (*lucid.Query, error) {
	t := s.registry.Define(collection, lucid.WithCollection(collection), lucid.WithoutTimestamps())
	q := t.Query()
	if strings.TrimSpace(where) == "" {
		return q, nil
	}
	group, err := engine.ParseWhereClause(where)
	if err != nil {
		return nil, fmt.Errorf("invalid where clause: %w", err)
	}
	return q.WhereBSON(engine.ToBSON(group)), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func withSession(flags *cliFlags, run func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, flags)
		if err != nil {
			return err
		}
		defer s.close(ctx)
		return run(ctx, s, args)
	}
}

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "lucidodm",
		Short:         "Inspect the collections of a lucidodm store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&flags.driver, "driver", "", "Store driver (memory, file, sqlite, mongo)")
	root.PersistentFlags().StringVar(&flags.dataDir, "datadir", "", "Directory holding the bundle datafiles")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "collections",
		Short: "List the collections in the store",
		Args:  cobra.NoArgs,
		RunE: withSession(flags, func(ctx context.Context, s *session, _ []string) error {
			names, err := s.store.Collections(ctx)
			if err != nil {
				return err
			}
			return printJSON(root, names)
		}),
	})

	var (
		where   string
		orderBy string
		limit   int
		page    int
		fields  []string
	)
	find := &cobra.Command{
		Use:   "find <collection>",
		Short: "Print the documents of a collection matching --where",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(flags, func(ctx context.Context, s *session, args []string) error {
			q, err := s.query(args[0], where)
			if err != nil {
				return err
			}
			if orderBy != "" {
				field, direction := strings.TrimPrefix(orderBy, "-"), "asc"
				if strings.HasPrefix(orderBy, "-") {
					direction = "desc"
				}
				q.OrderBy(field, direction)
			}
			if len(fields) > 0 {
				q.Select(fields...)
			}
			var rows *lucid.Collection
			if page > 0 {
				rows, err = q.Paginate(ctx, page, limit)
			} else {
				if limit > 0 {
					q.Limit(limit)
				}
				rows, err = q.Fetch(ctx)
			}
			if err != nil {
				return err
			}
			return printJSON(root, rows)
		}),
	}
	find.Flags().StringVarP(&where, "where", "w", "", `Filter such as "age > 20 AND vip == true"`)
	find.Flags().StringVar(&orderBy, "sort", "", "Sort field, prefixed with - for descending")
	find.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of documents, or page size with --page")
	find.Flags().IntVarP(&page, "page", "p", 0, "Page number; prints pagination meta")
	find.Flags().StringSliceVar(&fields, "fields", nil, "Fields to return")
	root.AddCommand(find)

	var countWhere string
	count := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count the documents of a collection matching --where",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(flags, func(ctx context.Context, s *session, args []string) error {
			q, err := s.query(args[0], countWhere)
			if err != nil {
				return err
			}
			n, err := q.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(root.OutOrStdout(), n)
			return nil
		}),
	}
	count.Flags().StringVarP(&countWhere, "where", "w", "", "Filter expression")
	root.AddCommand(count)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
