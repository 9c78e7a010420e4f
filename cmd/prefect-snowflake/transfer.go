package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PrefectHQ/prefect-snowflake/internal/config"
	"github.com/PrefectHQ/prefect-snowflake/pkg/snowflake"
	"github.com/PrefectHQ/prefect-snowflake/pkg/transfer"
	"github.com/PrefectHQ/prefect-snowflake/pkg/warehouse"
)

func newTransferCmd(flags *rootFlags) *cobra.Command {
	var (
		table       string
		targetTable string
		stage       string
		jobID       string
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Copy a table from a source warehouse into Snowflake",
		Long: `Copy a table from the configured source warehouse into Snowflake by spooling
batches to local files and loading them through an internal stage. Progress is
checkpointed in the block store, so an interrupted transfer with the same
--job-id resumes at the last committed batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if table == "" {
				return fmt.Errorf("--table is required")
			}

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			logger, err := newLogger(flags.verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			connector, err := cfg.Connector()
			if err != nil {
				return err
			}
			defer connector.Close()

			source, err := warehouse.New(&cfg.Source)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := source.Connect(ctx); err != nil {
				return err
			}
			defer source.Close()

			store, err := cfg.Store()
			if err != nil {
				return err
			}

			if stage == "" {
				stage = cfg.Transfer.Stage
			}
			if stage == "" {
				return fmt.Errorf("a stage name is required (--stage or transfer.stage in the config)")
			}

			job := &transfer.Transfer{
				Source:      source,
				Loader:      snowflake.NewStageLoader(connector, stage),
				Store:       store,
				Table:       table,
				TargetTable: targetTable,
				BatchSize:   cfg.Transfer.BatchSize,
				Format:      cfg.Transfer.Format,
				SpoolDir:    cfg.Transfer.SpoolDir,
				JobID:       jobID,
				Logger:      logger,
			}
			return job.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Source table to transfer")
	cmd.Flags().StringVar(&targetTable, "target-table", "", "Target table in Snowflake (defaults to the source table name)")
	cmd.Flags().StringVar(&stage, "stage", "", "Internal stage used for loading")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Stable job ID for resumable transfers")
	return cmd
}
