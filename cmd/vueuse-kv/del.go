package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func delCmd() *cobra.Command {
	var flags storeFlags

	cmd := &cobra.Command{
		Use:   "del <key>",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := flags.open()
			if err != nil {
				return err
			}
			defer closer.Close()

			key := args[0]
			if err := store.RemoveItem(key); err != nil {
				return fmt.Errorf("del %q: %w", key, err)
			}

			success("removed %s", key)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
