// Package walker discovers the regular files under a directory for batch
// encoding.
package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"golang.org/x/sync/errgroup"
)

// Options contains options for directory traversal
type Options struct {
	// FollowSymlinks determines whether symbolic links should be followed
	FollowSymlinks bool
	// MaxDepth is the maximum directory depth to traverse (0 means no limit)
	MaxDepth int
	// NumWorkers is the number of concurrent callback workers for WalkStream
	NumWorkers int
}

// DefaultOptions returns the default options for traversal
func DefaultOptions() Options {
	return Options{
		FollowSymlinks: false,
		MaxDepth:       100,
		NumWorkers:     4,
	}
}

// FileEntry identifies one regular file found under the root.
type FileEntry struct {
	// Path is relative to the walk root.
	Path string
	// AbsPath is the absolute location on disk.
	AbsPath string
	// Size is the file size in bytes.
	Size int64
}

// FileCallback processes one discovered file. If it returns an error the
// walk is aborted.
type FileCallback func(entry FileEntry) error

// Discover collects the regular files under root. Directories, symlinks
// and special files are skipped; unreadable entries are skipped rather
// than failing the walk.
func Discover(ctx context.Context, root string, options Options) ([]FileEntry, error) {
	entries := make([]FileEntry, 0, 64)
	err := walk(ctx, root, options, func(entry FileEntry) error {
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// WalkStream discovers files and feeds them to callback from NumWorkers
// goroutines as they are found. The callback must be safe for concurrent
// use; a callback error cancels the walk and is returned.
func WalkStream(ctx context.Context, root string, options Options, callback FileCallback) error {
	if options.NumWorkers < 1 {
		options.NumWorkers = 1
	}

	eg, ctx := errgroup.WithContext(ctx)
	entryChan := make(chan FileEntry, options.NumWorkers*2)

	eg.Go(func() error {
		defer close(entryChan)
		return walk(ctx, root, options, func(entry FileEntry) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case entryChan <- entry:
				return nil
			}
		})
	})

	for i := 0; i < options.NumWorkers; i++ {
		eg.Go(func() error {
			for entry := range entryChan {
				if err := callback(entry); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return eg.Wait()
}

// walk runs the traversal and calls emit for every regular file, in
// discovery order.
func walk(ctx context.Context, root string, options Options, emit FileCallback) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	return godirwalk.Walk(absRoot, &godirwalk.Options{
		FollowSymbolicLinks: options.FollowSymlinks,
		Unsorted:            false,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if osPathname == absRoot {
				return nil
			}

			relPath, err := filepath.Rel(absRoot, osPathname)
			if err != nil {
				return nil
			}

			if options.MaxDepth > 0 {
				depth := strings.Count(relPath, string(filepath.Separator))
				if depth >= options.MaxDepth {
					if de.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}

			if !de.IsRegular() {
				return nil
			}

			fileInfo, err := os.Stat(osPathname)
			if err != nil {
				return nil // Skip files we can't stat
			}

			return emit(FileEntry{
				Path:    relPath,
				AbsPath: osPathname,
				Size:    fileInfo.Size(),
			})
		},
		ErrorCallback: func(_ string, _ error) godirwalk.ErrorAction {
			return godirwalk.SkipNode
		},
	})
}
