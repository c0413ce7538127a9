package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func getCmd() *cobra.Command {
	var flags storeFlags

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the raw value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := flags.open()
			if err != nil {
				return err
			}
			defer closer.Close()

			key := args[0]
			value, ok, err := store.GetItem(key)
			if err != nil {
				return fmt.Errorf("get %q: %w", key, err)
			}
			if !ok {
				return fmt.Errorf("key %q not found", key)
			}

			fmt.Println(value)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
