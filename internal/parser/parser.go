// Package parser turns raw newswire XML documents into domain articles and
// their extracted metadata. Parsing is pure: identical input bytes always
// produce an identical Article and content hash.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"newswire-search/internal/dedup"
	"newswire-search/internal/domain/entity"
	"newswire-search/internal/utils/text"
)

// defaultFeedTimezone is the wall-clock zone of wire timestamps.
const defaultFeedTimezone = "Asia/Seoul"

// Parser decodes one article document per Parse call. Safe for concurrent
// use; all state is immutable after construction.
type Parser struct {
	loc       *time.Location
	hasher    *dedup.Hasher
	extractor *Extractor
}

// Option configures a Parser.
type Option func(*Parser)

// WithLocation sets the zone wire timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithHasher sets the content hasher. Defaults to MD5 strength.
func WithHasher(h *dedup.Hasher) Option {
	return func(p *Parser) {
		if h != nil {
			p.hasher = h
		}
	}
}

// New creates a Parser with the default feed timezone, hash strength, and
// entity pattern set.
func New(opts ...Option) *Parser {
	loc, err := time.LoadLocation(defaultFeedTimezone)
	if err != nil {
		loc = time.UTC
	}
	p := &Parser{
		loc:       loc,
		hasher:    dedup.NewHasher(dedup.StrengthMD5),
		extractor: NewExtractor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extractor returns the metadata extractor the parser runs, so the query
// analyzer can share its entity pattern library.
func (p *Parser) Extractor() *Extractor {
	return p.extractor
}

// Parse decodes raw XML bytes into an Article and its MetadataRecord.
//
// Failure modes are the sentinel errors of this package: ErrMalformed for
// broken XML, ErrMissingArticle when no article element exists, and
// ErrMissingIdentity when art_id is absent or blank. Missing optional
// fields never fail the parse; they stay zero.
func (p *Parser) Parse(raw []byte) (*entity.Article, *entity.MetadataRecord, error) {
	doc, err := decodeArticle(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("Parse: %w", err)
	}

	externalID := strings.TrimSpace(doc.Wms.ArtID)
	if externalID == "" {
		return nil, nil, fmt.Errorf("Parse: %w", ErrMissingIdentity)
	}

	article := &entity.Article{
		ExternalID: externalID,
		Title:      stripInline(doc.Wms.Title),
		Subtitle:   stripInline(doc.Wms.SubTitle),
		Body:       stripBlock(doc.BodyHolder.Body),
		Summary:    stripBlock(doc.SumHolder.Summary),
		Writers:    splitWriters(doc.Wms.Writers),
		SourceURL:  strings.TrimSpace(doc.ArticleURL),
		MediaCode:  strings.TrimSpace(doc.Wms.MediaCode),
		Edition:    strings.TrimSpace(doc.Wms.PubEdition),
		Section:    strings.TrimSpace(doc.Wms.PubSection),
		Page:       parseIntLenient(doc.Wms.PubPage),
		Categories: convertCategories(doc.Codes.Classes),
		Keywords:   feedKeywords(doc.Keywords),
		StockCodes: splitCSV(doc.StockCodes),
		Images:     convertImages(doc.Images.Images),
	}

	if t := p.parseDateTime(doc.Wms.ServiceDaytime); t != nil {
		article.PublishTime = *t
	}
	article.RegisteredTime = p.parseDateTime(doc.Wms.RegDt)
	article.ModifiedTime = p.parseDateTime(doc.Wms.ModDt)

	article.ContentHash = p.hasher.ContentHash(article.Title, article.Body, article.Summary)

	meta := p.extractor.Extract(article)
	article.ArticleType = meta.ArticleType
	article.ImportanceScore = meta.ImportanceScore
	article.IndexingText = meta.IndexingText
	mergeEntityKeywords(article, meta.Entities)

	return article, meta, nil
}

// Reextract recomputes everything Parse derives from article text: the
// content hash, extracted metadata, and entity keywords. Called after
// enrichment replaces the body so the stored derivatives match the new text.
func (p *Parser) Reextract(a *entity.Article) *entity.MetadataRecord {
	a.ContentHash = p.hasher.ContentHash(a.Title, a.Body, a.Summary)

	meta := p.extractor.Extract(a)
	a.ArticleType = meta.ArticleType
	a.ImportanceScore = meta.ImportanceScore
	a.IndexingText = meta.IndexingText
	mergeEntityKeywords(a, meta.Entities)

	return meta
}

// blockBreakPattern marks HTML block boundaries that must survive tag
// stripping as newlines, so paragraph chunking still sees them.
var blockBreakPattern = regexp.MustCompile(`(?i)</p\s*>|<br\s*/?>|</div\s*>`)

// stripInline flattens a single-line field: tags out, whitespace collapsed.
func stripInline(s string) string {
	return text.CollapseWhitespace(text.StripTags(s))
}

// stripBlock flattens body-like fields while preserving paragraph breaks.
func stripBlock(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blockBreakPattern.ReplaceAllString(s, "\n")
	s = text.StripTags(s)
	return strings.TrimSpace(s)
}

// splitWriters splits the writers field on the separators the wire uses
// (comma and the interpunct).
func splitWriters(s string) []string {
	return splitList(s, func(r rune) bool { return r == ',' || r == '·' })
}

func splitCSV(s string) []string {
	return splitList(s, func(r rune) bool { return r == ',' })
}

func splitList(s string, isSep func(rune) bool) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, isSep)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func feedKeywords(s string) []entity.Keyword {
	texts := splitCSV(s)
	if len(texts) == 0 {
		return nil
	}
	kws := make([]entity.Keyword, 0, len(texts))
	for _, t := range texts {
		kws = append(kws, entity.Keyword{Text: t, Type: entity.KeywordTypeGeneral})
	}
	return kws
}

func convertCategories(classes []xmlCodeClass) []entity.Category {
	if len(classes) == 0 {
		return nil
	}
	cats := make([]entity.Category, 0, len(classes))
	for _, c := range classes {
		cats = append(cats, entity.Category{
			CodeID:       strings.TrimSpace(c.CodeID),
			CodeNm:       stripInline(c.CodeNm),
			LargeCode:    strings.TrimSpace(c.LargeCodeID),
			LargeCodeNm:  stripInline(c.LargeCodeNm),
			MiddleCode:   strings.TrimSpace(c.MiddleCodeID),
			MiddleCodeNm: stripInline(c.MiddleCodeNm),
			SmallCode:    strings.TrimSpace(c.SmallCodeID),
			SmallCodeNm:  stripInline(c.SmallCodeNm),
		})
	}
	return cats
}

func convertImages(images []xmlImage) []entity.Image {
	if len(images) == 0 {
		return nil
	}
	out := make([]entity.Image, 0, len(images))
	for i, img := range images {
		url := strings.TrimSpace(img.URL)
		if url == "" {
			continue
		}
		out = append(out, entity.Image{
			Seq:     i,
			URL:     url,
			Caption: stripInline(img.Caption),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mergeEntityKeywords appends extracted entities to the article's keywords
// as typed entries. Feed keywords win on text collisions.
func mergeEntityKeywords(a *entity.Article, buckets entity.EntityBuckets) {
	seen := make(map[string]struct{}, len(a.Keywords))
	for _, k := range a.Keywords {
		seen[k.Text] = struct{}{}
	}
	add := func(texts []string, kt entity.KeywordType) {
		for _, t := range texts {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			a.Keywords = append(a.Keywords, entity.Keyword{Text: t, Type: kt})
		}
	}
	add(buckets.Companies, entity.KeywordTypeCompany)
	add(buckets.Persons, entity.KeywordTypePerson)
	add(buckets.Locations, entity.KeywordTypeLocation)
	add(buckets.Dates, entity.KeywordTypeDate)
	add(buckets.Numbers, entity.KeywordTypeNumber)
}
