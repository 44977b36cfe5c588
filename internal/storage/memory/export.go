package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/descentctl/lander/internal/storage/memory/export/v1"
)

var unsafeFileChars = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")

// exportJSON writes the current flight to <vessel>_<start>.json[.gz]. Caller holds the lock.
func (b *Backend) exportJSON() error {
	export := v1.Build(b.flight)

	name := unsafeFileChars.Replace(b.flight.Descent.VesselName)
	if name == "" {
		name = "descent"
	}
	filename := fmt.Sprintf("%s_%s.json", name, b.flight.Descent.StartTime.Format("20060102_150405"))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := writeExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}
	b.lastExportPath = outputPath
	return nil
}

func writeExport(path string, data v1.Export, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !compress {
		return json.NewEncoder(f).Encode(data)
	}

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(data); err != nil {
		_ = gz.Close()
		return fmt.Errorf("failed to encode flight log: %w", err)
	}
	return gz.Close()
}

// ReadExport loads a flight log written by this backend, gzipped or not.
func ReadExport(path string) (v1.Export, error) {
	var export v1.Export
	f, err := os.Open(path)
	if err != nil {
		return export, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		dec = json.NewDecoder(gz)
	}
	if err := dec.Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode flight log: %w", err)
	}
	return export, nil
}
