package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// readBufferSize is the chunk size used when hashing file content.
const readBufferSize = 8192

// Options configures a detection call.
type Options struct {
	// Concurrency bounds concurrent hashing. Zero means one file at a time.
	Concurrency int
}

// Detect groups paths by base name and by SHA-256 of their content. Only
// groups with two or more members are returned; hash groups come first, each
// partition sorted by key, members in input order.
//
// Paths that do not exist or are not regular files are left out of the hash
// partition. Any other error opening or reading a file aborts the call.
func Detect(ctx context.Context, paths []string, opts Options) (groups []domain.DupGroup, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveDuplicates(groups, err)
	}()
	slog.Info("Duplicate detection started", "paths", len(paths))

	digests, err := hashAll(ctx, paths, max(1, opts.Concurrency))
	if err != nil {
		return nil, err
	}

	hashMembers := partition(paths, func(i int, _ string) (string, bool) {
		return digests[i], digests[i] != ""
	})
	nameMembers := partition(paths, func(_ int, p string) (string, bool) {
		return baseName(p)
	})

	groups = append(collect(domain.DupKindHash, hashMembers), collect(domain.DupKindName, nameMembers)...)

	slog.Info("Duplicate detection done",
		"paths", len(paths),
		"groups", len(groups),
		"duration", time.Since(start))
	return groups, nil
}

// hashAll returns one hex digest per path, empty for skipped paths.
func hashAll(ctx context.Context, paths []string, limit int) ([]string, error) {
	digests := make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			digest, err := hashFile(p)
			if err != nil {
				return err
			}
			digests[i] = digest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return digests, nil
}

// hashFile returns the hex SHA-256 of path, or "" when path is missing or
// not a regular file.
func hashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		slog.Debug("Skipping path for hashing", "path", path)
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, readBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// baseName returns the last path element, or false for paths without one.
func baseName(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	name := filepath.Base(p)
	switch name {
	case ".", "..", string(filepath.Separator):
		return "", false
	}
	return name, true
}

// partition groups paths by the key returned from keyOf, keeping input order
// within each key.
func partition(paths []string, keyOf func(int, string) (string, bool)) map[string][]string {
	members := make(map[string][]string)
	for i, p := range paths {
		if key, ok := keyOf(i, p); ok {
			members[key] = append(members[key], p)
		}
	}
	return members
}

func collect(kind domain.DupKind, members map[string][]string) []domain.DupGroup {
	keys := make([]string, 0, len(members))
	for k, files := range members {
		if len(files) > 1 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	groups := make([]domain.DupGroup, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, domain.DupGroup{Kind: kind, Key: k, Files: members[k]})
	}
	return groups
}
