package cmd

import (
	"fmt"
	"os"

	"github.com/TFMV/squeeze/internal/dictionary"
	"github.com/TFMV/squeeze/internal/manifest"
	"github.com/TFMV/squeeze/internal/pipeline"
	"github.com/TFMV/squeeze/internal/serializer"
	"github.com/TFMV/squeeze/internal/storage"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Reconstruct the original bytes of a stored archive or bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, _ := cmd.Flags().GetString("id")
		storeDir, _ := cmd.Flags().GetString("store")
		bundlePath, _ := cmd.Flags().GetString("bundle")
		output, _ := cmd.Flags().GetString("output")
		dictPath, _ := cmd.Flags().GetString("dict")

		if output == "" {
			return fmt.Errorf("--output must be specified")
		}
		if id == "" && bundlePath == "" {
			return fmt.Errorf("either --id or --bundle must be specified")
		}

		var m *manifest.Manifest
		var payload []byte
		var err error

		if bundlePath != "" {
			data, readErr := os.ReadFile(bundlePath)
			if readErr != nil {
				return readErr
			}
			m, payload, err = serializer.DeserializeBundle(data)
			if err != nil {
				return err
			}
		} else {
			store, storeErr := storage.NewArchiveStore(storeDir)
			if storeErr != nil {
				return storeErr
			}
			defer store.Close()

			m, err = store.ReadManifest(id)
			if err != nil {
				return err
			}
			payload, err = store.ReadPayload(id)
			if err != nil {
				return err
			}
		}

		if dictPath != "" {
			dict, err := dictionary.Load(dictPath)
			if err != nil {
				return err
			}
			if err := pipeline.VerifyDictionary(m, dict); err != nil {
				return err
			}
		}

		// Check if context is canceled
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		out, err := pipeline.Decode(ctx, m, payload)
		if err != nil {
			return err
		}

		if err := os.WriteFile(output, out, 0644); err != nil {
			return err
		}
		fmt.Printf("Restored %d bytes to %s (%s verified)\n", len(out), output, m.HashAlgorithm)
		return nil
	},
}

func init() {
	restoreCmd.Flags().String("id", "", "Upload ID of the archive to restore")
	restoreCmd.Flags().String("store", defaultStoreDir, "Archive store directory")
	restoreCmd.Flags().String("bundle", "", "Restore from a bundle file instead of the store")
	restoreCmd.Flags().String("output", "", "Output file for the reconstructed bytes")
	restoreCmd.Flags().String("dict", "", "Verify the manifest against this code dictionary")
	RootCmd.AddCommand(restoreCmd)
}
