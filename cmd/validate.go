package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/TFMV/squeeze/internal/ascii"
	"github.com/TFMV/squeeze/internal/manifest"
	"github.com/TFMV/squeeze/internal/pipeline"
	"github.com/TFMV/squeeze/internal/storage"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check input printability, manifest integrity, or a stored archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		input, _ := cmd.Flags().GetString("input")
		manifestPath, _ := cmd.Flags().GetString("manifest")
		id, _ := cmd.Flags().GetString("id")
		storeDir, _ := cmd.Flags().GetString("store")

		switch {
		case input != "":
			data, err := os.ReadFile(input)
			if err != nil {
				return err
			}
			if err := ascii.Validate(data); err != nil {
				var inputErr *ascii.InvalidInputError
				if errors.As(err, &inputErr) {
					fmt.Printf("%s is not printable: byte 0x%02X at offset %d (compress will substitute it)\n",
						input, inputErr.Byte, inputErr.Pos)
					return nil
				}
				return err
			}
			fmt.Printf("%s is printable (%d bytes)\n", input, len(data))
			return nil

		case manifestPath != "":
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			printManifestSummary(m)
			return nil

		case id != "":
			store, err := storage.NewArchiveStore(storeDir)
			if err != nil {
				return err
			}
			defer store.Close()

			m, err := store.ReadManifest(id)
			if err != nil {
				return err
			}
			payload, err := store.ReadPayload(id)
			if err != nil {
				return err
			}
			out, err := pipeline.Decode(ctx, m, payload)
			if err != nil {
				return fmt.Errorf("archive %s failed verification: %w", id, err)
			}
			fmt.Printf("Archive %s verified: %d bytes reconstruct and match %s %s\n",
				id, len(out), m.HashAlgorithm, m.ContentHash)
			return nil
		}

		return fmt.Errorf("one of --input, --manifest or --id must be specified")
	},
}

func printManifestSummary(m *manifest.Manifest) {
	fmt.Printf("Manifest version %s (%s encoding)\n", m.Version, m.Encoding)
	fmt.Printf("  original size: %d bytes\n", m.OriginalSize)
	fmt.Printf("  content hash:  %s (%s)\n", m.ContentHash, m.HashAlgorithm)
	fmt.Printf("  chunk size:    %d bits, padding %d\n", m.ChunkSize, m.Padding)
	if m.Encoding == manifest.EncodingBlock {
		fmt.Printf("  codes:         %d (dictionary %s)\n", m.CodeCount, m.DictionaryFingerprint)
	}
	if m.SymbolEncoded {
		fmt.Printf("  symbol table:  %d entries\n", len(m.SymbolTable))
	}
	if len(m.ConversionMap) > 0 {
		fmt.Printf("  conversions:   %d distinct byte substitutions\n", len(m.ConversionMap))
	}
	for _, step := range m.ReversalSteps {
		fmt.Printf("  step %d: %s - %s\n", step.Step, step.Operation, step.Description)
	}
}

func init() {
	validateCmd.Flags().String("input", "", "Check whether a file is already printable")
	validateCmd.Flags().String("manifest", "", "Validate and summarize a manifest file")
	validateCmd.Flags().String("id", "", "Verify a stored archive end to end")
	validateCmd.Flags().String("store", defaultStoreDir, "Archive store directory")
	RootCmd.AddCommand(validateCmd)
}
