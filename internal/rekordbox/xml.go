// Package rekordbox models the Rekordbox XML library format.
package rekordbox

import (
	"encoding/xml"
	"fmt"
	"io"
)

const Version = "1.0.0"

// Node types
const (
	NodeTypeFolder   = "0"
	NodeTypePlaylist = "1"
)

type Document struct {
	XMLName    xml.Name   `xml:"DJ_PLAYLISTS"`
	Version    string     `xml:"Version,attr"`
	Product    Product    `xml:"PRODUCT"`
	Collection Collection `xml:"COLLECTION"`
	Playlists  *Playlists `xml:"PLAYLISTS"`
}

type Product struct {
	Name    string `xml:"Name,attr"`
	Version string `xml:"Version,attr"`
	Company string `xml:"Company,attr"`
}

type Collection struct {
	Entries string  `xml:"Entries,attr"`
	Tracks  []Track `xml:"TRACK"`
}

// Track is a collection entry. Every attribute is always written.
type Track struct {
	TrackID    string `xml:"TrackID,attr"`
	Name       string `xml:"Name,attr"`
	Artist     string `xml:"Artist,attr"`
	Album      string `xml:"Album,attr"`
	Composer   string `xml:"Composer,attr"`
	Genre      string `xml:"Genre,attr"`
	Kind       string `xml:"Kind,attr"`
	Size       string `xml:"Size,attr"`
	TotalTime  string `xml:"TotalTime,attr"`
	Year       string `xml:"Year,attr"`
	AverageBpm string `xml:"AverageBpm,attr"`
	DateAdded  string `xml:"DateAdded,attr"`
	BitRate    string `xml:"BitRate,attr"`
	Comments   string `xml:"Comments,attr"`
	PlayCount  string `xml:"PlayCount,attr"`
	Rating     string `xml:"Rating,attr"`
	Location   string `xml:"Location,attr"`
	Tonality   string `xml:"Tonality,attr"`
	Label      string `xml:"Label,attr"`

	Tempo         *Tempo         `xml:"TEMPO"`
	PositionMarks []PositionMark `xml:"POSITION_MARK"`
}

// Tempo anchors the beat grid. Inizio is the first downbeat in seconds,
// Metro the time signature and Battito the beat within the bar.
type Tempo struct {
	Inizio  string `xml:"Inizio,attr"`
	Bpm     string `xml:"Bpm,attr"`
	Metro   string `xml:"Metro,attr"`
	Battito string `xml:"Battito,attr"`
}

type PositionMark struct {
	Name  string `xml:"Name,attr"`
	Type  string `xml:"Type,attr"`
	Start string `xml:"Start,attr"`
	Num   string `xml:"Num,attr"`
	Red   string `xml:"Red,attr"`
	Green string `xml:"Green,attr"`
	Blue  string `xml:"Blue,attr"`
}

type Playlists struct {
	Nodes []Node `xml:"NODE"`
}

// Node is a folder or a playlist. Folders carry Count, playlists carry
// KeyType and Entries.
type Node struct {
	Name    string  `xml:"Name,attr"`
	Type    string  `xml:"Type,attr"`
	Count   *string `xml:"Count,attr,omitempty"`
	KeyType *string `xml:"KeyType,attr,omitempty"`
	Entries *string `xml:"Entries,attr,omitempty"`

	Nodes  []Node          `xml:"NODE"`
	Tracks []PlaylistTrack `xml:"TRACK"`
}

type PlaylistTrack struct {
	Key string `xml:"Key,attr"`
}

func NewDocument(product Product) *Document {
	return &Document{
		Version: Version,
		Product: product,
	}
}

func NewFolder(name, count string) Node {
	return Node{Name: name, Type: NodeTypeFolder, Count: &count}
}

func NewPlaylist(name, entries string) Node {
	keyType := "0"
	return Node{Name: name, Type: NodeTypePlaylist, KeyType: &keyType, Entries: &entries}
}

func (n Node) IsFolder() bool {
	return n.Type == NodeTypeFolder
}

// Encode writes doc with an XML declaration, indented by two spaces.
func Encode(w io.Writer, doc *Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write xml header: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode library: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush library: %w", err)
	}

	_, err := io.WriteString(w, "\n")
	return err
}

func Decode(r io.Reader) (*Document, error) {
	doc := &Document{}
	if err := xml.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode library: %w", err)
	}
	return doc, nil
}
