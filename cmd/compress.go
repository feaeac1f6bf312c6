package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/TFMV/squeeze/internal/dictionary"
	"github.com/TFMV/squeeze/internal/hash"
	"github.com/TFMV/squeeze/internal/index"
	"github.com/TFMV/squeeze/internal/pipeline"
	"github.com/TFMV/squeeze/internal/serializer"
	"github.com/TFMV/squeeze/internal/storage"
	"github.com/TFMV/squeeze/internal/walker"
	"github.com/spf13/cobra"
)

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Encode a file into an archive with a self-contained manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		input, _ := cmd.Flags().GetString("input")
		storeDir, _ := cmd.Flags().GetString("store")
		bundlePath, _ := cmd.Flags().GetString("bundle")
		useBlock, _ := cmd.Flags().GetBool("block")
		dictPath, _ := cmd.Flags().GetString("dict")
		hashName, _ := cmd.Flags().GetString("hash")
		recursive, _ := cmd.Flags().GetBool("recursive")
		workers, _ := cmd.Flags().GetInt("workers")
		verbose, _ := cmd.Flags().GetBool("verbose")

		if input == "" {
			return fmt.Errorf("--input must be specified")
		}

		opts, err := encodeOptions(useBlock, dictPath, hashName)
		if err != nil {
			return err
		}

		if recursive {
			return compressTree(cmd, input, storeDir, opts, workers)
		}

		data, err := os.ReadFile(input)
		if err != nil {
			return err
		}

		res, err := pipeline.Encode(ctx, data, opts)
		if err != nil {
			return err
		}

		// Check if context is canceled
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if bundlePath != "" {
			bundle, err := serializer.SerializeBundle(res.Manifest, res.Payload)
			if err != nil {
				return err
			}
			if err := os.WriteFile(bundlePath, bundle, 0644); err != nil {
				return err
			}
			fmt.Printf("Bundle %s saved to %s\n", res.Manifest.UploadID, bundlePath)
			return nil
		}

		store, err := storage.NewArchiveStore(storeDir)
		if err != nil {
			return err
		}
		defer store.Close()

		idx, err := index.Open(filepath.Join(storeDir, indexFileName))
		if err != nil {
			return err
		}
		defer idx.Close()

		if err := storeArchive(store, idx, filepath.Base(input), res); err != nil {
			return err
		}

		fmt.Printf("Archive %s stored (%d -> %d bytes)\n",
			res.Manifest.UploadID, res.Manifest.OriginalSize, len(res.Payload))
		if verbose {
			fmt.Println(res.Stats.Summary())
		}
		return nil
	},
}

// encodeOptions resolves the compress flags into pipeline options.
func encodeOptions(useBlock bool, dictPath, hashName string) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	if hashName != "" {
		algorithm, err := hash.ParseAlgorithm(strings.ToUpper(hashName))
		if err != nil {
			return opts, err
		}
		opts.Algorithm = algorithm
	}
	if useBlock {
		opts.UseBlock = true
		if dictPath != "" {
			dict, err := dictionary.Load(dictPath)
			if err != nil {
				return opts, err
			}
			opts.Dictionary = dict
		} else {
			opts.Dictionary = dictionary.Generate()
		}
	}
	return opts, nil
}

// storeArchive writes one encode result into the store and the upload
// index. Safe for concurrent use.
func storeArchive(store *storage.ArchiveStore, idx *index.Store, fileName string, res *pipeline.Result) error {
	id := res.Manifest.UploadID
	if err := store.WriteArchive(id, res.Manifest, res.Payload); err != nil {
		return err
	}
	return idx.Put(index.Record{
		ID:           id,
		FileName:     fileName,
		Encoding:     res.Manifest.Encoding,
		OriginalSize: res.Manifest.OriginalSize,
		PayloadSize:  uint64(len(res.Payload)),
		ContentHash:  res.Manifest.ContentHash,
		ManifestPath: store.ManifestPath(id),
		PayloadPath:  store.PayloadPath(id),
		CreatedAt:    time.Now().UTC(),
	})
}

// compressTree encodes every regular file under root, concurrently.
// Identical content produces identical upload IDs, so duplicate files
// dedupe into one archive.
func compressTree(cmd *cobra.Command, root, storeDir string, opts pipeline.Options, workers int) error {
	ctx := cmd.Context()

	store, err := storage.NewArchiveStore(storeDir)
	if err != nil {
		return err
	}
	defer store.Close()

	idx, err := index.Open(filepath.Join(storeDir, indexFileName))
	if err != nil {
		return err
	}
	defer idx.Close()

	walkOpts := walker.DefaultOptions()
	if workers > 0 {
		walkOpts.NumWorkers = workers
	}

	fmt.Printf("Starting batch encode of %s\n", root)
	var count atomic.Int64
	err = walker.WalkStream(ctx, root, walkOpts, func(entry walker.FileEntry) error {
		data, err := os.ReadFile(entry.AbsPath)
		if err != nil {
			return err
		}
		res, err := pipeline.Encode(ctx, data, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Path, err)
		}
		if err := storeArchive(store, idx, entry.Path, res); err != nil {
			return fmt.Errorf("%s: %w", entry.Path, err)
		}
		fmt.Printf("  %s -> %s\n", entry.Path, res.Manifest.UploadID)
		count.Add(1)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Encoded %d files into %s\n", count.Load(), storeDir)
	return nil
}

func init() {
	compressCmd.Flags().String("input", "", "File (or directory with --recursive) to encode")
	compressCmd.Flags().String("store", defaultStoreDir, "Archive store directory")
	compressCmd.Flags().String("bundle", "", "Write a single bundle file instead of using the store")
	compressCmd.Flags().Bool("block", false, "Use the 10-bit block encoding path")
	compressCmd.Flags().String("dict", "", "Code dictionary file for --block")
	compressCmd.Flags().String("hash", "", "Content hash algorithm (blake3 or sha256)")
	compressCmd.Flags().Bool("recursive", false, "Encode every regular file under --input")
	compressCmd.Flags().Int("workers", 0, "Concurrent workers for --recursive")
	compressCmd.Flags().Bool("verbose", false, "Print the normalization summary")
	RootCmd.AddCommand(compressCmd)
}
