package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PrefectHQ/prefect-snowflake/internal/config"
	"github.com/PrefectHQ/prefect-snowflake/pkg/snowflake"
)

func newQueryCmd(flags *rootFlags) *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Execute a query and print the result rows as JSON lines",
		Long: `Execute a query against the configured Snowflake connector. Queries run in
the driver's asynchronous mode unless --sync is given; PUT and GET file
transfer statements require --sync.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			connector, err := cfg.Connector()
			if err != nil {
				return err
			}
			defer connector.Close()

			ctx := cmd.Context()
			var rows []snowflake.Row
			if sync {
				rows, err = connector.QuerySync(ctx, args[0])
			} else {
				rows, err = connector.Query(ctx, args[0])
			}
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			for _, row := range rows {
				if err := encoder.Encode(row); err != nil {
					return fmt.Errorf("failed to encode row: %v", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Run the statement synchronously (required for PUT/GET)")
	return cmd
}
