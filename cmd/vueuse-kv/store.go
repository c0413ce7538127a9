package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/xiaofan33/vueuse/pkg/remote"
	"github.com/xiaofan33/vueuse/pkg/storage"
)

const defaultStoreFile = "vueuse-kv.json"

// storeFlags holds the backend selection flags shared by the data
// commands.
type storeFlags struct {
	file   string
	remote string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", defaultStoreFile, "Path of the JSON store")
	cmd.Flags().StringVarP(&f.remote, "remote", "r", "", "Base URL of a running hub (overrides --file)")
}

// open resolves the flags to a backend. The caller closes it.
func (f *storeFlags) open() (storage.Storage, io.Closer, error) {
	if f.remote != "" {
		c := remote.NewClient(f.remote)
		return c, c, nil
	}

	// CLI invocations are one-shot, polling for external changes would
	// only burn a goroutine.
	fs, err := storage.NewFileStorage(f.file, storage.WithPollInterval(0))
	if err != nil {
		return nil, nil, err
	}
	return fs, fs, nil
}
