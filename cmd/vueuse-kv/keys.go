package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	var flags storeFlags

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List all stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := flags.open()
			if err != nil {
				return err
			}
			defer closer.Close()

			var keys []string
			switch lister := store.(type) {
			case interface{ Keys() ([]string, error) }:
				keys, err = lister.Keys()
				if err != nil {
					return err
				}
			case interface{ Keys() []string }:
				keys = lister.Keys()
			default:
				return fmt.Errorf("the selected backend cannot enumerate keys")
			}

			sort.Strings(keys)
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
