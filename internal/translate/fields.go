package translate

import (
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/jaki95/trak2rek/internal/traktor"
)

const (
	locationPrefix = "file://localhost/"

	// trackIDModulus bounds track IDs to nine digits.
	trackIDModulus = 1_000_000_000

	// ratingStep maps the 0-255 ranking onto 0-5 stars.
	ratingStep = 51
)

var pitchClasses = [12]string{"C", "Db", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// KeyName decodes a Traktor musical key index. Indices from 12 up are minor.
func KeyName(camelot int) string {
	name := pitchClasses[((camelot%12)+12)%12]
	if camelot >= 12 {
		name += "m"
	}
	return name
}

// TrackID derives the numeric track identifier from the final file path.
// Different paths may collide.
func TrackID(path string) string {
	return strconv.FormatUint(xxhash.Sum64String(path)%trackIDModulus, 10)
}

// SourcePath assembles the file path of a LOCATION record, or "" when the
// record is absent.
func SourcePath(location traktor.Record) string {
	if !location.Present() {
		return ""
	}
	return location.Get("VOLUME", "") + NormalizeKey(location.Get("DIR", "")) + location.Get("FILE", "")
}

// NormalizeKey strips the "/:" directory separators Traktor uses in DIR
// attributes and playlist primary keys.
func NormalizeKey(key string) string {
	return strings.ReplaceAll(key, "/:", "/")
}

// LocationURI turns a path into a file://localhost/ URI.
func LocationURI(path string) string {
	if path == "" {
		return ""
	}
	return quote(locationPrefix + path)
}

// quote percent-encodes every byte except unreserved characters, path
// separators, drive colons and parentheses.
func quote(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("_.-~:/()", c) >= 0
}

// Kind labels a file by its upper-cased extension, e.g. "MP3 File".
func Kind(path string) string {
	if path == "" {
		return ""
	}
	ext := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		ext = path[i+1:]
	}
	return strings.ToUpper(ext) + " File"
}

// Year returns the leading year of a "YYYY/M/D" release date.
func Year(releaseDate string) string {
	year, _, _ := strings.Cut(releaseDate, "/")
	return year
}

// Rating rescales a 0-255 ranking to 0-5. Unparsable rankings count as 0.
func Rating(ranking string) string {
	n, err := strconv.Atoi(ranking)
	if err != nil {
		return "0"
	}
	return strconv.Itoa(floorDiv(n, ratingStep))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Seconds converts a millisecond timestamp to seconds. Integral results keep
// a trailing ".0". Unparsable timestamps count as 0.
func Seconds(ms string) string {
	v, err := strconv.ParseFloat(ms, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	s := strconv.FormatFloat(v/1000, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Tonality decodes the VALUE of a MUSICAL_KEY record, "" when the record is
// absent or the value is not an integer.
func Tonality(musicalKey traktor.Record) string {
	if !musicalKey.Present() {
		return ""
	}
	value, err := strconv.Atoi(musicalKey.Get("VALUE", "0"))
	if err != nil {
		return ""
	}
	return KeyName(value)
}
