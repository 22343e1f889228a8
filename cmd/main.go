package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/jaki95/trak2rek/config"
	"github.com/jaki95/trak2rek/internal/audio"
	"github.com/jaki95/trak2rek/internal/progress"
	"github.com/jaki95/trak2rek/internal/rekordbox"
	"github.com/jaki95/trak2rek/internal/storage"
	"github.com/jaki95/trak2rek/internal/traktor"
	"github.com/jaki95/trak2rek/internal/translate"
)

var errLibraryNotFound = errors.New("library not found")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("translation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(cfg.LogLevel),
	})))

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	tracker := progress.NewTracker()
	tracker.AddListener(logListener)

	var bar func(progress.Event)
	if !cfg.HideProgress {
		bar = newBarListener(ansi.NewAnsiStdout()).handle
		tracker.AddListener(bar)
	}

	opts := []translate.Option{translate.WithTracker(tracker)}
	if cfg.ConvertFLAC {
		engine := audio.NewFFMPEGEngine(cfg.Converter.Binary)
		opts = append(opts, translate.WithConverter(
			audio.NewFLACConverter(engine, cfg.Converter.Subdir, cfg.Converter.Extension),
		))
	}

	translator := translate.New(rekordbox.Product{
		Name:    cfg.Product.Name,
		Version: cfg.Product.Version,
		Company: cfg.Product.Company,
	}, opts...)

	tracker.UpdateProgress(progress.StageParsing, 0, fmt.Sprintf("Reading %s", cfg.Input))
	doc, err := readLibrary(store, cfg.Input)
	if err != nil {
		tracker.SetError(err)
		return err
	}

	out, err := translator.Translate(ctx, doc)
	if err != nil {
		return err
	}

	tracker.UpdateProgress(progress.StageWriting, 100, fmt.Sprintf("Writing %s", cfg.Output))
	if bar != nil {
		tracker.RemoveListener(bar)
	}
	if err := writeLibrary(store, cfg.Output, out); err != nil {
		tracker.SetError(err)
		return err
	}

	tracker.UpdateProgress(progress.StageComplete, 100, fmt.Sprintf("Wrote %d tracks to %s", len(out.Collection.Tracks), cfg.Output))
	report(os.Stdout, tracker.GetCurrentState())
	return nil
}

// report prints the tracker's final state.
func report(w io.Writer, state progress.Event) {
	if state.Error != "" {
		fmt.Fprintf(w, "%s: %s\n", state.Stage, state.Error)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", state.Stage, state.Message)
}

// parseFlags loads the optional config file and applies explicitly set flags
// on top of it.
func parseFlags(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("trak2rek", flag.ContinueOnError)

	var (
		configPath  string
		input       string
		output      string
		convertFLAC bool
	)

	fs.StringVar(&configPath, "config", "", "Path to a YAML config file (optional)")
	for _, name := range []string{"traktor", "t", "i"} {
		fs.StringVar(&input, name, "$COLLECTION.nml", "Input traktor collection.nml file")
	}
	for _, name := range []string{"rekordbox", "r", "o"} {
		fs.StringVar(&output, name, "rekordbox.xml", "Output rekordbox.xml file")
	}
	for _, name := range []string{"convert-flac", "c"} {
		fs.BoolVar(&convertFLAC, name, false, "Convert FLAC files to WAV")
	}

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "traktor", "t", "i":
			cfg.Input = input
		case "rekordbox", "r", "o":
			cfg.Output = output
		case "convert-flac", "c":
			cfg.ConvertFLAC = convertFLAC
		}
	})

	return cfg, nil
}

func readLibrary(store storage.Storage, path string) (*traktor.Document, error) {
	if !store.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", errLibraryNotFound, path)
	}

	r, err := store.GetReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	defer r.Close()

	return traktor.Parse(r)
}

// writeLibrary encodes the whole document before touching the destination.
func writeLibrary(store storage.Storage, path string, doc *rekordbox.Document) error {
	var buf bytes.Buffer
	if err := rekordbox.Encode(&buf, doc); err != nil {
		return err
	}

	w, err := store.GetWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	if _, err := io.Copy(w, &buf); err != nil {
		w.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func logListener(e progress.Event) {
	if e.TrackDetails != nil {
		slog.Debug("translated track",
			"track", e.TrackDetails.CurrentTrack,
			"number", e.TrackDetails.TrackNumber,
			"total", e.TrackDetails.TotalTracks,
		)
		return
	}
	slog.Debug(e.Message, "stage", e.Stage)
}

// barListener renders per-track events as a progress bar. The bar is
// finished once the collection is done.
type barListener struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newBarListener(w io.Writer) *barListener {
	return &barListener{w: w}
}

func (l *barListener) handle(e progress.Event) {
	switch {
	case e.TrackDetails != nil:
		if l.bar == nil {
			l.bar = progressbar.NewOptions(
				e.TrackDetails.TotalTracks,
				progressbar.OptionSetWriter(l.w),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetTheme(progressbar.ThemeASCII),
				progressbar.OptionFullWidth(),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Translating collection...[reset]"),
			)
		}
		_ = l.bar.Set(e.TrackDetails.ProcessedTracks)
	case e.Stage == progress.StagePlaylists, e.Stage == progress.StageWriting, e.Stage == progress.StageError:
		if l.bar != nil {
			_ = l.bar.Finish()
			l.bar = nil
		}
	}
}
