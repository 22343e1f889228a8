package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
)

const flacExtension = ".flac"

// FLACConverter replaces FLAC files with a converted copy kept in a
// subdirectory next to the source. Library paths always use forward slashes,
// so paths are handled with package path rather than filepath.
type FLACConverter struct {
	transcoder Transcoder
	subdir     string
	extension  string
}

func NewFLACConverter(transcoder Transcoder, subdir, extension string) *FLACConverter {
	return &FLACConverter{
		transcoder: transcoder,
		subdir:     subdir,
		extension:  strings.TrimPrefix(extension, "."),
	}
}

// ConvertedPath returns where the converted copy of p lives.
func (c *FLACConverter) ConvertedPath(p string) string {
	dir, file := path.Split(p)
	base := strings.TrimSuffix(file, path.Ext(file))
	return path.Join(dir, c.subdir, base+"."+c.extension)
}

// Convert returns the path the library should reference for p. Non-FLAC
// files and missing sources are returned unchanged. The transcoder only runs
// when the converted copy does not exist yet.
func (c *FLACConverter) Convert(ctx context.Context, p string) (string, error) {
	if !strings.EqualFold(path.Ext(p), flacExtension) {
		return p, nil
	}

	if !fileExists(p) {
		slog.Debug("Skipping conversion of missing file", "path", p)
		return p, nil
	}

	out := c.ConvertedPath(p)
	if fileExists(out) {
		slog.Debug("Using existing conversion", "input", p, "output", out)
		return out, nil
	}

	if err := os.MkdirAll(path.Dir(out), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := c.transcoder.Transcode(ctx, p, out); err != nil {
		// A partial output would be mistaken for a finished conversion next run.
		if rmErr := os.Remove(out); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("Failed to remove partial output", "output", out, "error", rmErr)
		}
		return "", fmt.Errorf("failed to convert %s: %w", p, err)
	}

	slog.Info("Converted", "input", p, "output", out)
	return out, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
