package source

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/resilience/circuitbreaker"
	"newswire-search/internal/resilience/retry"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// RSSLister discovers articles from RSS/Atom feeds using the gofeed
// library, with circuit breaker and retry around the fetch. Each feed item
// is converted into the wire XML intake shape so the downstream pipeline
// treats it exactly like a directory drop.
type RSSLister struct {
	client      *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	loc         *time.Location
}

// RSSOption configures an RSSLister.
type RSSOption func(*RSSLister)

// WithRetryConfig overrides the feed fetch retry configuration.
func WithRetryConfig(cfg retry.Config) RSSOption {
	return func(l *RSSLister) {
		l.retryConfig = cfg
	}
}

// WithLocation sets the zone used to render item timestamps into the wire
// document. Must match the timezone the parser interprets them in.
func WithLocation(loc *time.Location) RSSOption {
	return func(l *RSSLister) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// NewRSSLister creates an RSSLister with the given HTTP client.
func NewRSSLister(client *http.Client, opts ...RSSOption) *RSSLister {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.UTC
	}
	l := &RSSLister{
		client:      client,
		breaker:     circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig: retry.FeedFetchConfig(),
		loc:         loc,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Discover fetches the source's feed and returns the items published after
// since, converted into wire documents. Items without a parseable publish
// time are treated as fresh; the store's external-id conflict absorbs the
// occasional re-send.
func (l *RSSLister) Discover(ctx context.Context, src *entity.Source, since time.Time) ([]Document, error) {
	if src.FeedConfig == nil || src.FeedConfig.FeedURL == "" {
		return nil, fmt.Errorf("Discover: source %d has no feed URL configured", src.ID)
	}

	feed, err := l.fetchFeed(ctx, src.FeedConfig.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("Discover: fetch feed %s: %w", src.FeedConfig.FeedURL, err)
	}

	docs := make([]Document, 0, len(feed.Items))
	for _, item := range feed.Items {
		publishedAt := time.Now()
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}
		if !publishedAt.After(since) {
			continue
		}

		raw, err := l.synthesizeWireDocument(item, src.FeedConfig.MediaCode, publishedAt)
		if err != nil {
			slog.Warn("failed to convert feed item, skipping",
				slog.String("feed_url", src.FeedConfig.FeedURL),
				slog.String("item", itemID(item)),
				slog.Any("error", err))
			continue
		}

		docs = append(docs, Document{
			ID:      itemID(item),
			Raw:     raw,
			ModTime: publishedAt,
		})
	}

	return docs, nil
}

// fetchFeed retrieves and parses the feed with retry(breaker(do)).
func (l *RSSLister) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	var feed *gofeed.Feed

	retryErr := retry.WithBackoff(ctx, l.retryConfig, func() error {
		result, err := l.breaker.Execute(func() (interface{}, error) {
			fp := gofeed.NewParser()
			fp.UserAgent = "NewswireSearchBot"
			fp.Client = l.client
			return fp.ParseURLWithContext(feedURL, ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("circuit", l.breaker.Name()),
					slog.String("url", feedURL))
			}
			return err
		}
		feed = result.(*gofeed.Feed)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	return feed, nil
}

// Wire intake shape for converted feed items. Only the elements the parser
// reads are emitted; everything it treats as optional may stay empty.
type wireDocument struct {
	XMLName    xml.Name    `xml:"article"`
	Wms        wireArticle `xml:"wms_article"`
	Body       wireBody    `xml:"wms_article_body"`
	Summary    wireSummary `xml:"wms_article_summary"`
	Keywords   string      `xml:"wms_article_keywords,omitempty"`
	ArticleURL string      `xml:"article_url,omitempty"`
}

type wireArticle struct {
	ArtID          string `xml:"art_id"`
	ServiceDaytime string `xml:"service_daytime"`
	Title          string `xml:"title"`
	MediaCode      string `xml:"media_code,omitempty"`
	Writers        string `xml:"writers,omitempty"`
}

type wireBody struct {
	Body string `xml:"body"`
}

type wireSummary struct {
	Summary string `xml:"summary"`
}

// synthesizeWireDocument renders one feed item as a wire XML document.
// Content is preferred over the description for the body; when only a
// description exists it serves as both body and summary.
func (l *RSSLister) synthesizeWireDocument(item *gofeed.Item, mediaCode string, publishedAt time.Time) ([]byte, error) {
	id := itemID(item)
	if id == "" {
		return nil, errors.New("feed item has neither guid nor link")
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}

	doc := wireDocument{
		Wms: wireArticle{
			ArtID:          id,
			ServiceDaytime: publishedAt.In(l.loc).Format("2006-01-02 15:04:05"),
			Title:          item.Title,
			MediaCode:      mediaCode,
			Writers:        itemAuthors(item),
		},
		Body:       wireBody{Body: body},
		Summary:    wireSummary{Summary: item.Description},
		Keywords:   strings.Join(item.Categories, ","),
		ArticleURL: item.Link,
	}

	return xml.Marshal(doc)
}

// itemID returns the stable identity of a feed item: GUID when present,
// the link otherwise.
func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

// itemAuthors joins the item's author names the way the wire writers field
// is formatted.
func itemAuthors(item *gofeed.Item) string {
	names := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			names = append(names, a.Name)
		}
	}
	if len(names) == 0 && item.Author != nil && item.Author.Name != "" {
		names = append(names, item.Author.Name)
	}
	return strings.Join(names, ",")
}
