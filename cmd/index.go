package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/TFMV/squeeze/internal/index"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "List or inspect recorded uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		storeDir, _ := cmd.Flags().GetString("store")
		id, _ := cmd.Flags().GetString("id")
		deleteID, _ := cmd.Flags().GetString("delete")

		idx, err := index.Open(filepath.Join(storeDir, indexFileName))
		if err != nil {
			return err
		}
		defer idx.Close()

		switch {
		case deleteID != "":
			if err := idx.Delete(deleteID); err != nil {
				return err
			}
			fmt.Printf("Deleted upload record %s\n", deleteID)
			return nil

		case id != "":
			record, err := idx.Get(id)
			if err != nil {
				return err
			}
			fmt.Printf("Upload %s\n", record.ID)
			fmt.Printf("  file:     %s\n", record.FileName)
			fmt.Printf("  encoding: %s\n", record.Encoding)
			fmt.Printf("  size:     %d -> %d bytes\n", record.OriginalSize, record.PayloadSize)
			fmt.Printf("  hash:     %s\n", record.ContentHash)
			fmt.Printf("  manifest: %s\n", record.ManifestPath)
			fmt.Printf("  payload:  %s\n", record.PayloadPath)
			fmt.Printf("  created:  %s\n", record.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		}

		records, err := idx.List()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No uploads recorded")
			return nil
		}
		for _, record := range records {
			fmt.Printf("%s  %-8s %10d -> %-10d %s\n",
				record.ID, record.Encoding, record.OriginalSize, record.PayloadSize, record.FileName)
		}
		fmt.Printf("%d uploads\n", len(records))
		return nil
	},
}

func init() {
	indexCmd.Flags().String("store", defaultStoreDir, "Archive store directory")
	indexCmd.Flags().String("id", "", "Show one upload record in detail")
	indexCmd.Flags().String("delete", "", "Delete an upload record by ID")
	RootCmd.AddCommand(indexCmd)
}
