package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ekaya/facegate/pkg/logging"
)

const cascadeURL = "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder"

// cmdDownloadCascade fetches the pigo face detection cascade into the
// configured location (or an explicit directory argument).
func cmdDownloadCascade(args []string) error {
	targetPath := cfg.Detector.CascadeFile
	if len(args) > 0 {
		targetPath = filepath.Join(args[0], "facefinder")
	}

	if _, err := os.Stat(targetPath); err == nil {
		fmt.Printf("Cascade already exists at %s\n", targetPath)
		return nil
	}

	logging.Infof("Downloading cascade to: %s", targetPath)
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("failed to create cascade directory: %w", err)
	}

	if err := download(cascadeURL, targetPath); err != nil {
		return fmt.Errorf("failed to download cascade: %w", err)
	}

	fmt.Printf("Cascade downloaded to %s\n", targetPath)
	return nil
}

func download(url, targetPath string) error {
	client := &http.Client{
		Timeout: 2 * time.Minute,
	}

	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	out, err := os.Create(targetPath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, resp.Body)
	return err
}
