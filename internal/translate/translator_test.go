package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/trak2rek/internal/audio"
	"github.com/jaki95/trak2rek/internal/progress"
	"github.com/jaki95/trak2rek/internal/rekordbox"
	"github.com/jaki95/trak2rek/internal/traktor"
)

var testProduct = rekordbox.Product{Name: "t2r", Version: "1.0.0", Company: "roundestrobin"}

type MockConverter struct {
	mock.Mock
}

func (m *MockConverter) Convert(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

// countingTranscoder writes a placeholder output file and counts invocations.
type countingTranscoder struct {
	calls map[string]int
}

func (c *countingTranscoder) Transcode(ctx context.Context, inputPath, outputPath string) error {
	c.calls[inputPath]++
	return os.WriteFile(outputPath, []byte("RIFF"), 0644)
}

func parse(t *testing.T, nml string) *traktor.Document {
	t.Helper()

	doc, err := traktor.Parse(strings.NewReader(nml))
	require.NoError(t, err)
	return doc
}

func newTestTranslator(opts ...Option) *Translator {
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	return New(testProduct, opts...)
}

const exampleNML = `<?xml version="1.0" encoding="UTF-8"?>
<NML VERSION="19">
<COLLECTION ENTRIES="1">
<ENTRY TITLE="Song" ARTIST="Artist">
<LOCATION VOLUME="C:" DIR="/:Music/:" FILE="song.mp3"></LOCATION>
<ALBUM TITLE="Album"></ALBUM>
<INFO GENRE="House" PLAYTIME="240" RANKING="204" RELEASEDATE="2019/1/1" IMPORT_DATE="2023/4/30" BITRATE="320000" COMMENT="nice" PLAYCOUNT="4" LABEL="Label"></INFO>
<TEMPO BPM="128"></TEMPO>
<MUSICAL_KEY VALUE="3"></MUSICAL_KEY>
</ENTRY>
</COLLECTION>
</NML>`

func TestTranslateExampleEntry(t *testing.T) {
	out, err := newTestTranslator().Translate(context.Background(), parse(t, exampleNML))
	require.NoError(t, err)

	assert.Equal(t, rekordbox.Version, out.Version)
	assert.Equal(t, testProduct, out.Product)
	assert.Equal(t, "1", out.Collection.Entries)
	assert.Nil(t, out.Playlists)
	require.Len(t, out.Collection.Tracks, 1)

	track := out.Collection.Tracks[0]
	assert.Equal(t, TrackID("C:/Music/song.mp3"), track.TrackID)
	assert.Equal(t, "Song", track.Name)
	assert.Equal(t, "Artist", track.Artist)
	assert.Equal(t, "Album", track.Album)
	assert.Equal(t, "", track.Composer)
	assert.Equal(t, "House", track.Genre)
	assert.Equal(t, "MP3 File", track.Kind)
	assert.Equal(t, "", track.Size)
	assert.Equal(t, "240", track.TotalTime)
	assert.Equal(t, "2019", track.Year)
	assert.Equal(t, "128", track.AverageBpm)
	assert.Equal(t, "2023/4/30", track.DateAdded)
	assert.Equal(t, "320000", track.BitRate)
	assert.Equal(t, "nice", track.Comments)
	assert.Equal(t, "4", track.PlayCount)
	assert.Equal(t, "4", track.Rating)
	assert.Equal(t, "file://localhost/C:/Music/song.mp3", track.Location)
	assert.Equal(t, "Eb", track.Tonality)
	assert.Equal(t, "Label", track.Label)
	assert.Nil(t, track.Tempo)
	assert.Empty(t, track.PositionMarks)

	var buf bytes.Buffer
	require.NoError(t, rekordbox.Encode(&buf, out))
	for _, attr := range []string{
		`Kind="MP3 File"`, `AverageBpm="128"`, `TotalTime="240"`, `Tonality="Eb"`,
		`Location="file://localhost/C:/Music/song.mp3"`, `Genre="House"`,
	} {
		assert.Contains(t, buf.String(), attr)
	}
}

func TestTranslateDefaults(t *testing.T) {
	doc := parse(t, `<NML><COLLECTION><ENTRY></ENTRY></COLLECTION></NML>`)

	out, err := newTestTranslator().Translate(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "0", out.Collection.Entries)
	require.Len(t, out.Collection.Tracks, 1)
	assert.Equal(t, rekordbox.Track{TrackID: TrackID("")}, out.Collection.Tracks[0])
}

func TestTranslateInfoWithoutRanking(t *testing.T) {
	doc := parse(t, `<NML><COLLECTION><ENTRY><INFO GENRE="Techno"></INFO></ENTRY></COLLECTION></NML>`)

	out, err := newTestTranslator().Translate(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "0", out.Collection.Tracks[0].Rating)
	assert.Equal(t, "Techno", out.Collection.Tracks[0].Genre)
}

func TestTranslateCues(t *testing.T) {
	doc := parse(t, `<NML><COLLECTION ENTRIES="1"><ENTRY TITLE="Cued">
<TEMPO BPM="124.000061"></TEMPO>
<CUE_V2 NAME="AutoGrid" TYPE="4" START="125.5" HOTCUE="0"></CUE_V2>
<CUE_V2 NAME="Intro" TYPE="0" START="1500" HOTCUE="1"></CUE_V2>
<CUE_V2 NAME="Drop" TYPE="0" START="60000" HOTCUE="2"></CUE_V2>
<CUE_V2 NAME="Outro" TYPE="0" START="180250.75"></CUE_V2>
</ENTRY></COLLECTION></NML>`)

	out, err := newTestTranslator().Translate(context.Background(), doc)
	require.NoError(t, err)
	track := out.Collection.Tracks[0]

	require.NotNil(t, track.Tempo)
	assert.Equal(t, rekordbox.Tempo{Inizio: "0.1255", Bpm: "124.000061", Metro: "4/4", Battito: "1"}, *track.Tempo)

	// The grid anchor is kept as an ordinary marker too.
	require.Len(t, track.PositionMarks, 4)
	names := []string{"AutoGrid", "Intro", "Drop", "Outro"}
	starts := []string{"0.1255", "1.5", "60.0", "180.25075"}
	nums := []string{"0", "1", "2", ""}

	previous := -1.0
	for i, mark := range track.PositionMarks {
		assert.Equal(t, names[i], mark.Name)
		assert.Equal(t, "0", mark.Type)
		assert.Equal(t, starts[i], mark.Start)
		assert.Equal(t, nums[i], mark.Num)

		start, err := strconv.ParseFloat(mark.Start, 64)
		require.NoError(t, err)
		assert.Greater(t, start, previous, "cue order should be preserved")
		previous = start

		for _, channel := range []string{mark.Red, mark.Green, mark.Blue} {
			c, err := strconv.Atoi(channel)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, c, 0)
			assert.LessOrEqual(t, c, 255)
		}
	}
}

func TestTranslateAutoGridWithoutTempo(t *testing.T) {
	doc := parse(t, `<NML><COLLECTION><ENTRY><CUE_V2 NAME="AutoGrid" START="0"></CUE_V2></ENTRY></COLLECTION></NML>`)

	out, err := newTestTranslator().Translate(context.Background(), doc)
	require.NoError(t, err)

	require.NotNil(t, out.Collection.Tracks[0].Tempo)
	assert.Equal(t, "0.0", out.Collection.Tracks[0].Tempo.Inizio)
	assert.Equal(t, "", out.Collection.Tracks[0].Tempo.Bpm)
}

func TestTranslateFileSize(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "present.mp3"), []byte("0123456789"), 0644))

	doc := parse(t, fmt.Sprintf(`<NML><COLLECTION>
<ENTRY><LOCATION VOLUME="" DIR="%[1]s/" FILE="present.mp3"></LOCATION></ENTRY>
<ENTRY><LOCATION VOLUME="" DIR="%[1]s/" FILE="missing.mp3"></LOCATION></ENTRY>
</COLLECTION></NML>`, tempDir))

	out, err := newTestTranslator().Translate(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "10", out.Collection.Tracks[0].Size)
	assert.Equal(t, "", out.Collection.Tracks[1].Size)
}

const playlistNML = `<NML>
<COLLECTION ENTRIES="2">
<ENTRY TITLE="One"><LOCATION VOLUME="C:" DIR="/:Music/:" FILE="one.mp3"></LOCATION></ENTRY>
<ENTRY TITLE="Two"><LOCATION VOLUME="C:" DIR="/:Music/:sub/:" FILE="two.mp3"></LOCATION></ENTRY>
</COLLECTION>
<PLAYLISTS><NODE TYPE="FOLDER" NAME="$ROOT"><SUBNODES COUNT="5">
<NODE TYPE="PLAYLIST" NAME="Warmup"><PLAYLIST ENTRIES="3" TYPE="LIST">
<ENTRY><PRIMARYKEY TYPE="TRACK" KEY="C:/:Music/:one.mp3"></PRIMARYKEY></ENTRY>
<ENTRY></ENTRY>
<ENTRY><PRIMARYKEY TYPE="TRACK" KEY="C:/:Music/:sub/:two.mp3"></PRIMARYKEY></ENTRY>
</PLAYLIST></NODE>
<NODE TYPE="FOLDER" NAME="Nested"><SUBNODES COUNT="1">
<NODE TYPE="PLAYLIST" NAME="Peak"><PLAYLIST>
<ENTRY><PRIMARYKEY TYPE="TRACK" KEY="C:/:Music/:sub/:two.mp3"></PRIMARYKEY></ENTRY>
</PLAYLIST></NODE>
</SUBNODES></NODE>
<NODE TYPE="FOLDER" NAME="No Subnodes"></NODE>
<NODE TYPE="PLAYLIST" NAME="No List"></NODE>
<NODE TYPE="SMARTLIST" NAME="Smart"></NODE>
</SUBNODES></NODE></PLAYLISTS>
</NML>`

func TestTranslatePlaylists(t *testing.T) {
	out, err := newTestTranslator().Translate(context.Background(), parse(t, playlistNML))
	require.NoError(t, err)

	require.NotNil(t, out.Playlists)
	require.Len(t, out.Playlists.Nodes, 1)

	root := out.Playlists.Nodes[0]
	assert.Equal(t, "ROOT", root.Name)
	assert.True(t, root.IsFolder())
	require.NotNil(t, root.Count)
	assert.Equal(t, "5", *root.Count)

	// Skipped: folder without SUBNODES, playlist without PLAYLIST, smartlist.
	require.Len(t, root.Nodes, 2)
	if declared, _ := strconv.Atoi(*root.Count); declared != len(root.Nodes) {
		t.Logf("declared folder count %d differs from %d emitted children", declared, len(root.Nodes))
	}

	warmup := root.Nodes[0]
	assert.Equal(t, "Warmup", warmup.Name)
	assert.Equal(t, rekordbox.NodeTypePlaylist, warmup.Type)
	require.NotNil(t, warmup.KeyType)
	assert.Equal(t, "0", *warmup.KeyType)
	require.NotNil(t, warmup.Entries)
	assert.Equal(t, "3", *warmup.Entries)
	assert.Nil(t, warmup.Count)
	assert.Equal(t, []rekordbox.PlaylistTrack{
		{Key: TrackID("C:/Music/one.mp3")},
		{Key: TrackID("C:/Music/sub/two.mp3")},
	}, warmup.Tracks)

	nested := root.Nodes[1]
	assert.Equal(t, "Nested", nested.Name)
	require.Len(t, nested.Nodes, 1)
	peak := nested.Nodes[0]
	require.NotNil(t, peak.Entries)
	assert.Equal(t, "0", *peak.Entries)

	assertReferentialIntegrity(t, out)
}

func TestTranslatePlaylistsWithoutRootNode(t *testing.T) {
	doc := parse(t, `<NML><COLLECTION ENTRIES="0"></COLLECTION><PLAYLISTS></PLAYLISTS></NML>`)

	out, err := newTestTranslator().Translate(context.Background(), doc)
	require.NoError(t, err)

	require.NotNil(t, out.Playlists)
	assert.Empty(t, out.Playlists.Nodes)
}

func TestTranslateMissingCollection(t *testing.T) {
	translator := newTestTranslator()

	out, err := translator.Translate(context.Background(), nil)
	assert.ErrorIs(t, err, traktor.ErrNoCollection)
	assert.Nil(t, out)

	out, err = translator.Translate(context.Background(), &traktor.Document{})
	assert.ErrorIs(t, err, traktor.ErrNoCollection)
	assert.Nil(t, out)
}

const conversionNML = `<NML>
<COLLECTION ENTRIES="2">
<ENTRY TITLE="Lossless"><LOCATION VOLUME="C:" DIR="/:Music/:" FILE="track.flac"></LOCATION></ENTRY>
<ENTRY TITLE="Lossy"><LOCATION VOLUME="C:" DIR="/:Music/:" FILE="song.mp3"></LOCATION></ENTRY>
</COLLECTION>
<PLAYLISTS><NODE TYPE="FOLDER" NAME="$ROOT"><SUBNODES COUNT="1">
<NODE TYPE="PLAYLIST" NAME="Mixed"><PLAYLIST ENTRIES="2">
<ENTRY><PRIMARYKEY KEY="C:/:Music/:track.flac"></PRIMARYKEY></ENTRY>
<ENTRY><PRIMARYKEY KEY="C:/:Music/:song.mp3"></PRIMARYKEY></ENTRY>
</PLAYLIST></NODE>
</SUBNODES></NODE></PLAYLISTS>
</NML>`

func TestTranslateWithConverter(t *testing.T) {
	converter := &MockConverter{}
	converter.On("Convert", mock.Anything, "C:/Music/track.flac").Return("C:/Music/convertedWavs/track.wav", nil)
	converter.On("Convert", mock.Anything, "C:/Music/song.mp3").Return("C:/Music/song.mp3", nil)

	out, err := newTestTranslator(WithConverter(converter)).Translate(context.Background(), parse(t, conversionNML))
	require.NoError(t, err)

	lossless := out.Collection.Tracks[0]
	assert.Equal(t, TrackID("C:/Music/convertedWavs/track.wav"), lossless.TrackID)
	assert.Equal(t, "WAV File", lossless.Kind)
	assert.Equal(t, "file://localhost/C:/Music/convertedWavs/track.wav", lossless.Location)

	lossy := out.Collection.Tracks[1]
	assert.Equal(t, "MP3 File", lossy.Kind)

	mixed := out.Playlists.Nodes[0].Nodes[0]
	assert.Equal(t, []rekordbox.PlaylistTrack{{Key: lossless.TrackID}, {Key: lossy.TrackID}}, mixed.Tracks)

	assertReferentialIntegrity(t, out)
	converter.AssertExpectations(t)
}

func TestTranslateConverterError(t *testing.T) {
	boom := errors.New("ffmpeg exploded")
	converter := &MockConverter{}
	converter.On("Convert", mock.Anything, "C:/Music/track.flac").Return("", boom)

	tracker := progress.NewTracker()
	out, err := newTestTranslator(WithConverter(converter), WithTracker(tracker)).Translate(context.Background(), parse(t, conversionNML))

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.Equal(t, progress.StageError, tracker.GetCurrentState().Stage)
}

func TestTranslateConvertsOncePerFile(t *testing.T) {
	tempDir := t.TempDir()
	source := tempDir + "/track.flac"
	require.NoError(t, os.WriteFile(source, []byte("fLaC"), 0644))

	nml := fmt.Sprintf(`<NML><COLLECTION ENTRIES="1">
<ENTRY TITLE="Lossless"><LOCATION VOLUME="" DIR="%[1]s/" FILE="track.flac"></LOCATION></ENTRY>
</COLLECTION>
<PLAYLISTS><NODE TYPE="FOLDER" NAME="$ROOT"><SUBNODES COUNT="1">
<NODE TYPE="PLAYLIST" NAME="List"><PLAYLIST ENTRIES="1">
<ENTRY><PRIMARYKEY KEY="%[1]s/track.flac"></PRIMARYKEY></ENTRY>
</PLAYLIST></NODE>
</SUBNODES></NODE></PLAYLISTS></NML>`, tempDir)

	transcoder := &countingTranscoder{calls: make(map[string]int)}
	converter := audio.NewFLACConverter(transcoder, "convertedWavs", "wav")
	translator := newTestTranslator(WithConverter(converter))

	for run := 0; run < 2; run++ {
		out, err := translator.Translate(context.Background(), parse(t, nml))
		require.NoError(t, err)

		track := out.Collection.Tracks[0]
		assert.Equal(t, "WAV File", track.Kind)
		assert.Equal(t, "4", track.Size)
		assert.Equal(t, TrackID(tempDir+"/convertedWavs/track.wav"), track.TrackID)
		assertReferentialIntegrity(t, out)
	}

	assert.Equal(t, 1, transcoder.calls[source])
}

func TestTranslateReportsProgress(t *testing.T) {
	tracker := progress.NewTracker()

	var trackEvents []progress.TrackDetails
	var stages []progress.Stage
	tracker.AddListener(func(e progress.Event) {
		if e.TrackDetails != nil {
			trackEvents = append(trackEvents, *e.TrackDetails)
			return
		}
		stages = append(stages, e.Stage)
	})

	_, err := newTestTranslator(WithTracker(tracker)).Translate(context.Background(), parse(t, playlistNML))
	require.NoError(t, err)

	assert.Equal(t, []progress.Stage{progress.StageCollection, progress.StagePlaylists}, stages)
	require.Len(t, trackEvents, 2)
	assert.Equal(t, progress.TrackDetails{TrackNumber: 2, TotalTracks: 2, CurrentTrack: "Two", ProcessedTracks: 2}, trackEvents[1])
}

// assertReferentialIntegrity checks that every playlist track reference
// matches exactly one collection track.
func assertReferentialIntegrity(t *testing.T, doc *rekordbox.Document) {
	t.Helper()

	ids := make(map[string]int)
	for _, track := range doc.Collection.Tracks {
		ids[track.TrackID]++
	}

	var walk func(nodes []rekordbox.Node)
	walk = func(nodes []rekordbox.Node) {
		for _, node := range nodes {
			for _, ref := range node.Tracks {
				assert.Equal(t, 1, ids[ref.Key], "playlist %q references unknown track %s", node.Name, ref.Key)
			}
			walk(node.Nodes)
		}
	}
	if doc.Playlists != nil {
		walk(doc.Playlists.Nodes)
	}
}
