package audio

import (
	"context"
)

// Transcoder converts one audio file into another format.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) error
}
