package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func setCmd() *cobra.Command {
	var flags storeFlags

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a raw value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := flags.open()
			if err != nil {
				return err
			}
			defer closer.Close()

			key, value := args[0], args[1]
			if err := store.SetItem(key, value); err != nil {
				return fmt.Errorf("set %q: %w", key, err)
			}

			success("%s = %s", key, value)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
