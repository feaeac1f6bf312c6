package cmd

import (
	"fmt"

	"github.com/TFMV/squeeze/internal/dictionary"
	"github.com/spf13/cobra"
)

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Generate or inspect 10-bit code dictionaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		input, _ := cmd.Flags().GetString("input")

		switch {
		case output != "":
			dict := dictionary.Generate()
			if err := dict.Save(output); err != nil {
				return err
			}
			fmt.Printf("Dictionary with %d codes saved to %s\n", dict.Len(), output)
			fmt.Printf("Fingerprint: %s\n", dict.Fingerprint())
			return nil

		case input != "":
			dict, err := dictionary.Load(input)
			if err != nil {
				return err
			}
			fmt.Printf("Dictionary %s: %d codes\n", input, dict.Len())
			fmt.Printf("Fingerprint: %s\n", dict.Fingerprint())
			return nil
		}

		return fmt.Errorf("either --output (generate) or --input (inspect) must be specified")
	},
}

func init() {
	dictCmd.Flags().String("output", "", "Generate the full dictionary and save it here")
	dictCmd.Flags().String("input", "", "Inspect an existing dictionary file")
	RootCmd.AddCommand(dictCmd)
}
