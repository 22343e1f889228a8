// Package translate maps a Traktor library onto a Rekordbox library.
//
// The collection is translated entry by entry; the playlist tree is then
// mirrored, with track references resolved to the same identifiers as the
// collection, including paths rewritten by audio conversion.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/jaki95/trak2rek/internal/progress"
	"github.com/jaki95/trak2rek/internal/rekordbox"
	"github.com/jaki95/trak2rek/internal/traktor"
)

const (
	rootFolderName    = "$ROOT"
	renamedRootFolder = "ROOT"
	autoGridMetro     = "4/4"
	autoGridBattito   = "1"
	positionMarkType  = "0"
)

// Converter rewrites a track path, converting the file when needed, and
// returns the path the library should reference.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

type Translator struct {
	product   rekordbox.Product
	converter Converter
	tracker   *progress.Tracker
	intn      func(n int) int
}

type Option func(*Translator)

// WithConverter enables audio conversion.
func WithConverter(c Converter) Option {
	return func(t *Translator) {
		t.converter = c
	}
}

func WithTracker(tracker *progress.Tracker) Option {
	return func(t *Translator) {
		t.tracker = tracker
	}
}

// WithRand sets the source of cue colours.
func WithRand(r *rand.Rand) Option {
	return func(t *Translator) {
		t.intn = r.IntN
	}
}

func New(product rekordbox.Product, opts ...Option) *Translator {
	t := &Translator{
		product: product,
		tracker: progress.NewTracker(),
		intn:    rand.IntN,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate builds the Rekordbox document for doc. It fails only when the
// collection is missing or a conversion fails.
func (t *Translator) Translate(ctx context.Context, doc *traktor.Document) (*rekordbox.Document, error) {
	if doc == nil || doc.Collection == nil {
		return nil, traktor.ErrNoCollection
	}

	out := rekordbox.NewDocument(t.product)

	// original path -> path referenced by the output
	resolved := make(map[string]string, len(doc.Collection.Entries))

	collection, err := t.translateCollection(ctx, doc.Collection, resolved)
	if err != nil {
		t.tracker.SetError(err)
		return nil, err
	}
	out.Collection = collection

	if doc.HasPlaylists {
		t.tracker.UpdateProgress(progress.StagePlaylists, 100, "Translating playlists")
		out.Playlists = &rekordbox.Playlists{}
		if doc.Root != nil {
			if node, ok := t.translateNode(doc.Root, resolved); ok {
				out.Playlists.Nodes = append(out.Playlists.Nodes, node)
			}
		}
	}

	return out, nil
}

func (t *Translator) translateCollection(ctx context.Context, c *traktor.Collection, resolved map[string]string) (rekordbox.Collection, error) {
	total := len(c.Entries)
	t.tracker.UpdateProgress(progress.StageCollection, 0, fmt.Sprintf("Translating %d entries", total))

	collection := rekordbox.Collection{
		Entries: c.Attrs.Get("ENTRIES", "0"),
		Tracks:  make([]rekordbox.Track, 0, total),
	}

	for i, entry := range c.Entries {
		track, err := t.translateEntry(ctx, entry, resolved)
		if err != nil {
			return rekordbox.Collection{}, err
		}
		collection.Tracks = append(collection.Tracks, track)
		t.tracker.UpdateTrackProgress(i+1, total, i+1, track.Name)
	}

	return collection, nil
}

func (t *Translator) translateEntry(ctx context.Context, entry traktor.Entry, resolved map[string]string) (rekordbox.Track, error) {
	original := SourcePath(entry.Location)
	path, err := t.resolve(ctx, original)
	if err != nil {
		return rekordbox.Track{}, err
	}
	if original != "" {
		resolved[original] = path
	}

	info := entry.Info
	track := rekordbox.Track{
		TrackID:    TrackID(path),
		Name:       entry.Attrs.Get("TITLE", ""),
		Artist:     entry.Attrs.Get("ARTIST", ""),
		Album:      entry.Album.Get("TITLE", ""),
		Genre:      info.Get("GENRE", ""),
		Kind:       Kind(path),
		Size:       fileSize(path),
		TotalTime:  info.Get("PLAYTIME", ""),
		Year:       Year(info.Get("RELEASEDATE", "")),
		AverageBpm: entry.Tempo.Get("BPM", ""),
		DateAdded:  info.Get("IMPORT_DATE", ""),
		BitRate:    info.Get("BITRATE", ""),
		Comments:   info.Get("COMMENT", ""),
		PlayCount:  info.Get("PLAYCOUNT", ""),
		Location:   LocationURI(path),
		Tonality:   Tonality(entry.MusicalKey),
		Label:      info.Get("LABEL", ""),
	}
	if info.Present() {
		track.Rating = Rating(info.Get("RANKING", "0"))
	}

	if entry.AutoGrid.Present() {
		track.Tempo = &rekordbox.Tempo{
			Inizio:  Seconds(entry.AutoGrid.Get("START", "0")),
			Bpm:     entry.Tempo.Get("BPM", ""),
			Metro:   autoGridMetro,
			Battito: autoGridBattito,
		}
	}

	for _, cue := range entry.Cues {
		track.PositionMarks = append(track.PositionMarks, rekordbox.PositionMark{
			Name:  cue.Get("NAME", ""),
			Type:  positionMarkType,
			Start: Seconds(cue.Get("START", "0")),
			Num:   cue.Get("HOTCUE", ""),
			Red:   strconv.Itoa(t.intn(256)),
			Green: strconv.Itoa(t.intn(256)),
			Blue:  strconv.Itoa(t.intn(256)),
		})
	}

	return track, nil
}

// resolve runs the converter on path when conversion is enabled.
func (t *Translator) resolve(ctx context.Context, path string) (string, error) {
	if t.converter == nil || path == "" {
		return path, nil
	}
	converted, err := t.converter.Convert(ctx, path)
	if err != nil {
		return "", err
	}
	return converted, nil
}

func fileSize(path string) string {
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Debug("Unable to stat track", "path", path, "error", err)
		}
		return ""
	}
	return strconv.FormatInt(info.Size(), 10)
}

// translateNode mirrors one playlist tree node. It reports false for nodes
// that are skipped: folders without SUBNODES, playlists without PLAYLIST and
// unknown node types.
func (t *Translator) translateNode(node traktor.Node, resolved map[string]string) (rekordbox.Node, bool) {
	switch n := node.(type) {
	case *traktor.Folder:
		if !n.Subnodes.Present() {
			return rekordbox.Node{}, false
		}
		name := n.NodeName()
		if name == rootFolderName {
			name = renamedRootFolder
		}
		folder := rekordbox.NewFolder(name, n.Subnodes.Get("COUNT", "0"))
		// The declared count is copied as is; every child is visited.
		for _, child := range n.Children {
			if sub, ok := t.translateNode(child, resolved); ok {
				folder.Nodes = append(folder.Nodes, sub)
			}
		}
		return folder, true

	case *traktor.Playlist:
		if !n.List.Present() {
			return rekordbox.Node{}, false
		}
		playlist := rekordbox.NewPlaylist(n.NodeName(), n.List.Get("ENTRIES", "0"))
		for _, item := range n.Items {
			if !item.PrimaryKey.Present() {
				continue
			}
			path := NormalizeKey(item.PrimaryKey.Get("KEY", ""))
			if final, ok := resolved[path]; ok {
				path = final
			}
			playlist.Tracks = append(playlist.Tracks, rekordbox.PlaylistTrack{Key: TrackID(path)})
		}
		return playlist, true

	default:
		slog.Debug("Skipping playlist node", "name", node.NodeName(), "type", fmt.Sprintf("%T", node))
		return rekordbox.Node{}, false
	}
}
