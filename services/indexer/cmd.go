package indexer

import (
	"errors"
	"fmt"

	"github.com/kaytu-io/kaytu-catalog/pkg/httpserver"
	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex"
	"github.com/kaytu-io/kaytu-catalog/services/indexer/api"
	"github.com/kaytu-io/kaytu-catalog/services/indexer/config"
	"github.com/kaytu-io/kaytu-util/pkg/koanf"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func Command() *cobra.Command {
	cnf := koanf.Provide("search-index", config.SearchIndexConfig{})

	var only string
	cmd := &cobra.Command{
		Use:   "search-index-worker",
		Short: "Create, migrate and drop the catalog search indexes",
	}
	cmd.PersistentFlags().StringVar(&only, "index", "", "restrict the operation to a single index type")

	cmd.AddCommand(
		operationCommand(&cnf, &only, OperationCreate, "Creates all the indexes in the search cluster"),
		operationCommand(&cnf, &only, OperationMigrate, "Updates the search index mappings"),
		dropCommand(&cnf, &only),
		ensureCommand(&cnf),
		statusCommand(&cnf),
		serveCommand(&cnf),
	)

	return cmd
}

func operationCommand(cnf *config.SearchIndexConfig, only *string, op Operation, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(op),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := newJob(cmd, *cnf)
			if err != nil {
				return err
			}
			return j.Run(cmd.Context(), op, *only)
		},
	}
}

func dropCommand(cnf *config.SearchIndexConfig, only *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   string(OperationDrop),
		Short: "Drop all the indexes in the search cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("dropping indexes deletes every indexed document, pass --yes to continue")
			}
			j, err := newJob(cmd, *cnf)
			if err != nil {
				return err
			}
			return j.Run(cmd.Context(), OperationDrop, *only)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping the indexes")
	return cmd
}

func ensureCommand(cnf *config.SearchIndexConfig) *cobra.Command {
	return &cobra.Command{
		Use:       "ensure <index-type>",
		Short:     "Create the index if it does not exist yet",
		Args:      cobra.ExactArgs(1),
		ValidArgs: indexTypeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := newJob(cmd, *cnf)
			if err != nil {
				return err
			}
			ok, err := j.Ensure(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("index %s is not available", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), args[0], "exists")
			return nil
		},
	}
}

func statusCommand(cnf *config.SearchIndexConfig) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cluster state of every index and the last recorded failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("unsupported output %q, use table or json", output)
			}
			j, err := newJob(cmd, *cnf)
			if err != nil {
				return err
			}
			return j.Report(cmd.Context(), cmd.OutOrStdout(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format, table or json")
	return cmd
}

func serveCommand(cnf *config.SearchIndexConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the index status and search API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := newJob(cmd, *cnf)
			if err != nil {
				return err
			}

			address := cnf.Http.Address
			if address == "" {
				address = defaultHttpAddress
			}
			return httpserver.RegisterAndStart(
				cmd.Context(),
				j.logger,
				address,
				httpserver.TracingConfig{
					AgentHost:   cnf.Tracing.JaegerAgentHost,
					ServiceName: cnf.Tracing.ServiceName,
				},
				api.New(j.manager, searchindex.NewSearcher(j.manager, j.engine), j.ledger, j.logger),
			)
		},
	}
}

func newJob(cmd *cobra.Command, cnf config.SearchIndexConfig) (*Job, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	logger = logger.Named("search-index-worker")

	cmd.SilenceUsage = true

	j, err := InitializeJob(cnf, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job: %w", err)
	}
	return j, nil
}

func indexTypeNames() []string {
	var names []string
	for _, t := range searchindex.AllIndexTypes() {
		names = append(names, string(t))
	}
	return names
}
