// Package traktor reads Traktor NML library exports into a source tree.
// Elements are kept as attribute records so that callers can tell an absent
// element or attribute apart from an empty one.
package traktor

import (
	"errors"
	"fmt"
	"io"

	"github.com/antchfx/xmlquery"
)

var ErrNoCollection = errors.New("library has no COLLECTION element")

const autoGridQuery = `.//CUE_V2[@NAME='AutoGrid']`

// Record holds the attributes of one element. A nil Record means the element
// is absent.
type Record map[string]string

// Get returns the named attribute, or fallback when the record or the
// attribute is absent.
func (r Record) Get(name, fallback string) string {
	if v, ok := r[name]; ok {
		return v
	}
	return fallback
}

// Present reports whether the element was found.
func (r Record) Present() bool {
	return r != nil
}

// Entry is one ENTRY of the collection.
type Entry struct {
	Attrs      Record
	Info       Record
	Location   Record
	Tempo      Record
	Album      Record
	MusicalKey Record

	// Cues are the CUE_V2 children in document order.
	Cues []Record

	// AutoGrid is the cue named "AutoGrid", nil when there is none.
	AutoGrid Record
}

type Collection struct {
	Attrs   Record
	Entries []Entry
}

// Node is a playlist tree node: *Folder, *Playlist or *Unknown.
type Node interface {
	NodeName() string
}

type Folder struct {
	Attrs Record

	// Subnodes is the SUBNODES record, nil when the folder has none.
	Subnodes Record
	Children []Node
}

type Playlist struct {
	Attrs Record

	// List is the PLAYLIST record, nil when the node has none.
	List  Record
	Items []Item
}

// Item is one ENTRY of a playlist.
type Item struct {
	PrimaryKey Record
}

// Unknown is a node whose TYPE is neither FOLDER nor PLAYLIST.
type Unknown struct {
	Attrs Record
}

func (f *Folder) NodeName() string   { return f.Attrs.Get("NAME", "") }
func (p *Playlist) NodeName() string { return p.Attrs.Get("NAME", "") }
func (u *Unknown) NodeName() string  { return u.Attrs.Get("NAME", "") }

type Document struct {
	Collection *Collection

	// HasPlaylists reports whether a PLAYLISTS element exists.
	HasPlaylists bool

	// Root is the first NODE of PLAYLISTS, nil when absent.
	Root Node
}

// Parse reads an NML document.
func Parse(r io.Reader) (*Document, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse library: %w", err)
	}

	// xmlquery rejects input without a document element.
	root := firstChild(doc, "")
	collectionNode := firstChild(root, "COLLECTION")
	if collectionNode == nil {
		return nil, ErrNoCollection
	}

	collection := &Collection{Attrs: attrs(collectionNode)}
	for _, entryNode := range children(collectionNode, "ENTRY") {
		entry, err := parseEntry(entryNode)
		if err != nil {
			return nil, err
		}
		collection.Entries = append(collection.Entries, entry)
	}

	document := &Document{Collection: collection}

	if playlists := firstChild(root, "PLAYLISTS"); playlists != nil {
		document.HasPlaylists = true
		if node := firstChild(playlists, "NODE"); node != nil {
			document.Root = parseNode(node)
		}
	}

	return document, nil
}

func parseEntry(n *xmlquery.Node) (Entry, error) {
	entry := Entry{
		Attrs:      attrs(n),
		Info:       attrs(firstChild(n, "INFO")),
		Location:   attrs(firstChild(n, "LOCATION")),
		Tempo:      attrs(firstChild(n, "TEMPO")),
		Album:      attrs(firstChild(n, "ALBUM")),
		MusicalKey: attrs(firstChild(n, "MUSICAL_KEY")),
	}

	for _, cue := range children(n, "CUE_V2") {
		entry.Cues = append(entry.Cues, attrs(cue))
	}

	autoGrid, err := xmlquery.Query(n, autoGridQuery)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to query auto grid cue: %w", err)
	}
	entry.AutoGrid = attrs(autoGrid)

	return entry, nil
}

func parseNode(n *xmlquery.Node) Node {
	record := attrs(n)

	switch record.Get("TYPE", "") {
	case "FOLDER":
		folder := &Folder{Attrs: record}
		if subnodes := firstChild(n, "SUBNODES"); subnodes != nil {
			folder.Subnodes = attrs(subnodes)
			for _, child := range children(subnodes, "NODE") {
				folder.Children = append(folder.Children, parseNode(child))
			}
		}
		return folder
	case "PLAYLIST":
		playlist := &Playlist{Attrs: record}
		if list := firstChild(n, "PLAYLIST"); list != nil {
			playlist.List = attrs(list)
			for _, item := range children(list, "ENTRY") {
				playlist.Items = append(playlist.Items, Item{
					PrimaryKey: attrs(firstChild(item, "PRIMARYKEY")),
				})
			}
		}
		return playlist
	default:
		return &Unknown{Attrs: record}
	}
}

// attrs returns the attribute record of n, nil when n is nil.
func attrs(n *xmlquery.Node) Record {
	if n == nil {
		return nil
	}
	record := make(Record, len(n.Attr))
	for _, a := range n.Attr {
		record[a.Name.Local] = a.Value
	}
	return record
}

// children returns the element children of n with the given tag, or all
// element children when tag is empty.
func children(n *xmlquery.Node, tag string) []*xmlquery.Node {
	var nodes []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && (tag == "" || c.Data == tag) {
			nodes = append(nodes, c)
		}
	}
	return nodes
}

func firstChild(n *xmlquery.Node, tag string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && (tag == "" || c.Data == tag) {
			return c
		}
	}
	return nil
}
