// Package audio converts audio files with FFmpeg.
// It validates inputs, picks the codec from the output extension and wraps
// FFmpeg failures with the command line and its output.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Supported audio file extensions and their corresponding FFmpeg codecs and formats
var supportedExtensions = map[string]struct {
	codec  string
	format string
}{
	"mp3":  {"libmp3lame", "mp3"},
	"m4a":  {"aac", "mp4"},
	"wav":  {"pcm_s16le", "wav"},
	"flac": {"flac", "flac"},
}

var (
	ErrFileNotFound     = fmt.Errorf("file not found")
	ErrFileEmpty        = fmt.Errorf("file is empty")
	ErrInvalidPath      = fmt.Errorf("invalid path")
	ErrInvalidExtension = fmt.Errorf("invalid file extension")
)

// ffmpegError wraps FFmpeg command errors with additional context
type ffmpegError struct {
	cmd     string
	output  string
	wrapped error
}

func (e *ffmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %s\nCommand: %s\nOutput: %s", e.wrapped, e.cmd, e.output)
}

func (e *ffmpegError) Unwrap() error {
	return e.wrapped
}

// newFFmpegError creates a new ffmpegError with truncated command output
func newFFmpegError(cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	return &ffmpegError{
		cmd:     cmdStr,
		output:  string(output),
		wrapped: err,
	}
}

type ffmpeg struct {
	binary string
}

// NewFFMPEGEngine returns a Transcoder running the given ffmpeg binary.
func NewFFMPEGEngine(binary string) *ffmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &ffmpeg{binary: binary}
}

func (f *ffmpeg) validateFile(path string) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("unable to access file: %s: %w", path, err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidPath, path)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrFileEmpty, path)
	}

	return nil
}

// codecFor returns the codec and container for the extension of path.
func codecFor(path string) (string, string, error) {
	ext := filepath.Ext(path)
	if ext != "" {
		ext = ext[1:] // Remove the leading dot
	}

	codecInfo, ok := supportedExtensions[strings.ToLower(ext)]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidExtension, ext)
	}
	return codecInfo.codec, codecInfo.format, nil
}

// Transcode converts inputPath into outputPath, choosing the codec from the
// output extension. The output directory must exist.
func (f *ffmpeg) Transcode(ctx context.Context, inputPath, outputPath string) error {
	slog.Debug("Transcoding audio", "input", inputPath, "output", outputPath)

	if err := f.validateFile(inputPath); err != nil {
		return fmt.Errorf("transcoding failed: %w", err)
	}

	codec, format, err := codecFor(outputPath)
	if err != nil {
		return fmt.Errorf("transcoding failed: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.binary,
		"-y",
		"-i", inputPath,
		"-map", "0:a",
		"-c:a", codec,
		"-f", format,
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newFFmpegError(cmd, output, err)
	}

	return nil
}
