package store

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testSample(shade uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetGray(x, y, color.Gray{Y: shade})
		}
	}
	return img
}

func TestListIdentities_MissingRoot(t *testing.T) {
	d := NewDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if got := d.ListIdentities(); len(got) != 0 {
		t.Errorf("expected no identities, got %v", got)
	}
}

func TestStoreSample_CreatesIdentity(t *testing.T) {
	d := NewDir(t.TempDir())

	if d.IdentityExists("Ada_Lovelace") {
		t.Error("identity should not exist before first sample")
	}

	path, err := d.StoreSample("Ada_Lovelace", testSample(100))
	if err != nil {
		t.Fatalf("StoreSample failed: %v", err)
	}

	if !d.IdentityExists("Ada_Lovelace") {
		t.Error("identity should exist after first sample")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("sample file missing: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "Ada_Lovelace_") {
		t.Errorf("sample name should carry the identity: %s", path)
	}
}

func TestStoreSample_UniqueNames(t *testing.T) {
	d := NewDir(t.TempDir())

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		path, err := d.StoreSample("admin", testSample(uint8(i)))
		if err != nil {
			t.Fatalf("StoreSample %d failed: %v", i, err)
		}
		if seen[path] {
			t.Fatalf("duplicate sample path: %s", path)
		}
		seen[path] = true
	}

	if got := d.SampleCount("admin"); got != 10 {
		t.Errorf("expected 10 samples, got %d", got)
	}
}

func TestStoreSample_UnwritableRoot(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root, permission checks do not apply")
	}

	root := t.TempDir()
	if err := os.Chmod(root, 0500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(root, 0700) })

	d := NewDir(root)
	if _, err := d.StoreSample("blocked", testSample(1)); err == nil {
		t.Error("expected storage error for unwritable root")
	}
}

func TestListIdentities_Sorted(t *testing.T) {
	d := NewDir(t.TempDir())

	for _, name := range []string{"Charlie_B", "admin", "Ada_Lovelace"} {
		if _, err := d.StoreSample(name, testSample(50)); err != nil {
			t.Fatalf("StoreSample(%s) failed: %v", name, err)
		}
	}

	got := d.ListIdentities()
	want := []string{"Ada_Lovelace", "Charlie_B", "admin"}
	if len(got) != len(want) {
		t.Fatalf("expected %d identities, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("identity %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestListIdentities_SkipsEmptyDirs(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)

	if _, err := d.StoreSample("real", testSample(50)); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0700); err != nil {
		t.Fatal(err)
	}

	got := d.ListIdentities()
	if len(got) != 1 || got[0] != "real" {
		t.Errorf("expected only identities with samples, got %v", got)
	}
}

func TestFirstSampleFor(t *testing.T) {
	d := NewDir(t.TempDir())

	if _, ok := d.FirstSampleFor("nobody"); ok {
		t.Error("expected no sample for unknown identity")
	}

	var paths []string
	for i := 0; i < 3; i++ {
		path, err := d.StoreSample("admin", testSample(uint8(i)))
		if err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	first, ok := d.FirstSampleFor("admin")
	if !ok {
		t.Fatal("expected a first sample")
	}

	// Deterministic: lexicographically first of the stored files.
	want := paths[0]
	for _, p := range paths[1:] {
		if p < want {
			want = p
		}
	}
	if first != want {
		t.Errorf("expected %s, got %s", want, first)
	}
}

func TestSamples_IgnoresForeignFiles(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)

	if _, err := d.StoreSample("admin", testSample(1)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "admin", "README.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := d.SampleCount("admin"); got != 1 {
		t.Errorf("expected 1 sample, got %d", got)
	}
}

func TestRemoveIdentity(t *testing.T) {
	d := NewDir(t.TempDir())

	if _, err := d.StoreSample("Ada_Lovelace", testSample(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := d.StoreSample("admin", testSample(2)); err != nil {
		t.Fatal(err)
	}

	if err := d.RemoveIdentity("Ada_Lovelace"); err != nil {
		t.Fatalf("RemoveIdentity() error = %v", err)
	}

	if d.IdentityExists("Ada_Lovelace") {
		t.Error("removed identity still exists")
	}
	if got := d.ListIdentities(); len(got) != 1 || got[0] != "admin" {
		t.Errorf("ListIdentities() = %v, want [admin]", got)
	}

	// Removing an unknown identity is a no-op.
	if err := d.RemoveIdentity("nobody"); err != nil {
		t.Errorf("RemoveIdentity(unknown) error = %v", err)
	}
}
