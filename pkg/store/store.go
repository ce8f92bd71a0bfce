// Package store persists face samples on disk, one directory per
// identity. The directory tree is the authoritative record of which
// identities exist; an identity materializes the first time a sample
// is stored for it.
package store

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya/facegate/pkg/imaging"
	"github.com/ekaya/facegate/pkg/logging"
)

// ErrStorage is returned when a sample cannot be written.
var ErrStorage = errors.New("failed to write face sample")

// Dir is a filesystem-backed identity store rooted at a single
// directory.
type Dir struct {
	root string
}

// NewDir creates a store rooted at root. The directory itself is
// created lazily on the first write; a missing root reads as "no
// identities".
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the store's root directory.
func (d *Dir) Root() string {
	return d.root
}

// ListIdentities returns the display names that have at least one
// stored sample, sorted. It never fails; unreadable or missing roots
// read as empty.
func (d *Dir) ListIdentities() []string {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if len(d.Samples(entry.Name())) > 0 {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

// IdentityExists reports whether the identity has a sample directory.
func (d *Dir) IdentityExists(name string) bool {
	info, err := os.Stat(filepath.Join(d.root, name))
	return err == nil && info.IsDir()
}

// StoreSample persists one cropped grayscale face sample under the
// identity, creating its directory if needed. The file name combines a
// capture timestamp with a random suffix so repeated captures never
// collide. Returns the path of the written sample.
func (d *Dir) StoreSample(name string, img *image.Gray) (string, error) {
	dir := filepath.Join(d.root, name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	filename := fmt.Sprintf("%s_%d_%s.png", name, time.Now().UnixNano(), uuid.NewString()[:8])
	path := filepath.Join(dir, filename)

	if err := imaging.SavePNG(path, img); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	logging.Component("store").Debugf("stored sample %s", path)
	return path, nil
}

// Samples returns the sorted sample file paths stored for an identity.
func (d *Dir) Samples(name string) []string {
	entries, err := os.ReadDir(filepath.Join(d.root, name))
	if err != nil {
		return nil
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !isSampleFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(d.root, name, entry.Name()))
	}
	sort.Strings(paths)
	return paths
}

// SampleCount returns the number of samples stored for an identity.
func (d *Dir) SampleCount(name string) int {
	return len(d.Samples(name))
}

// FirstSampleFor returns the lexicographically first sample path for
// an identity, for thumbnail display. The second return is false when
// the identity has no samples.
func (d *Dir) FirstSampleFor(name string) (string, bool) {
	samples := d.Samples(name)
	if len(samples) == 0 {
		return "", false
	}
	return samples[0], true
}

// RemoveIdentity deletes an identity's sample directory. Removing an
// unknown identity is not an error. The caller is expected to retrain
// afterwards so the model stops carrying the retired identity.
func (d *Dir) RemoveIdentity(name string) error {
	if err := os.RemoveAll(filepath.Join(d.root, name)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	logging.Component("store").Infof("removed identity %s", name)
	return nil
}

func isSampleFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
