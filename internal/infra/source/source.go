// Package source discovers raw article documents for the ingest pipeline.
//
// Two source kinds exist. Directory sources are the primary newswire feed:
// XML documents dropped into a watched directory by the wire's FTP push.
// RSS sources supplement the wire; their items are converted into the same
// intake XML shape, so a single parser and a single dedup/embed path serve
// every source kind.
package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"newswire-search/internal/domain/entity"
)

// Document is one raw article document discovered from a source.
type Document struct {
	// ID identifies the document within its source: the file path for
	// directory sources, the item GUID or link for RSS sources.
	ID string

	// Raw holds the document bytes in the wire XML shape.
	Raw []byte

	// ModTime orders documents within a run and drives the incremental
	// watermark: only documents with ModTime after the source's last
	// watermark are discovered again.
	ModTime time.Time
}

// Lister discovers the documents of a source that are newer than a
// watermark. Implementations never parse article content; they only locate
// and read raw documents.
type Lister interface {
	Discover(ctx context.Context, src *entity.Source, since time.Time) ([]Document, error)
}

// Archiver is an optional capability of a Lister: moving a processed
// document out of the discovery window. The ingest run archives each
// document it has fully processed when the source's lister supports it.
type Archiver interface {
	Archive(src *entity.Source, doc Document) error
}

// Factory hands out the lister for a source. Listers are shared across
// calls so that circuit breaker state survives between ingest runs.
type Factory struct {
	dir *DirectoryLister
	rss *RSSLister
}

// NewFactory creates a Factory. The HTTP client is used for RSS fetches.
func NewFactory(client *http.Client) *Factory {
	return &Factory{
		dir: NewDirectoryLister(),
		rss: NewRSSLister(client),
	}
}

// ForSource returns the lister matching the source's type. An empty type
// means a directory source, mirroring entity.Source.Validate.
func (f *Factory) ForSource(src *entity.Source) (Lister, error) {
	switch src.SourceType {
	case "", "Directory":
		return f.dir, nil
	case "RSS":
		return f.rss, nil
	default:
		return nil, fmt.Errorf("ForSource: unknown source type %q", src.SourceType)
	}
}
