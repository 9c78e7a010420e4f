package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PrefectHQ/prefect-snowflake/internal/config"
	"github.com/PrefectHQ/prefect-snowflake/pkg/blocks"
)

func newBlocksCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Manage stored blocks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "types",
		Short: "List registered block types",
		Run: func(cmd *cobra.Command, args []string) {
			for _, slug := range blocks.Types() {
				fmt.Println(slug)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore(flags)
			if err != nil {
				return err
			}

			docs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, doc := range docs {
				fmt.Printf("%s\t%s\n", doc.Name, doc.Type)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print a stored block document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore(flags)
			if err != nil {
				return err
			}

			docs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, doc := range docs {
				if doc.Name == args[0] {
					encoder := json.NewEncoder(os.Stdout)
					encoder.SetIndent("", "  ")
					return encoder.Encode(doc)
				}
			}
			return blocks.ErrNotFound
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save-connector <name>",
		Short: "Store the configured Snowflake connector as a block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			connector, err := cfg.Connector()
			if err != nil {
				return err
			}

			store, err := cfg.Store()
			if err != nil {
				return err
			}
			return store.Save(cmd.Context(), args[0], connector)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore(flags)
			if err != nil {
				return err
			}
			return store.Delete(cmd.Context(), args[0])
		},
	})

	return cmd
}

func newStore(flags *rootFlags) (blocks.Store, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	return cfg.Store()
}
