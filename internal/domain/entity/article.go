// Package entity defines the core domain entities and validation logic for
// the application: the canonical Article record, its extracted metadata,
// embedding records, ANN index state, and domain-specific errors.
package entity

import "time"

// ArticleType classifies an article by its dominant topic, inferred from
// keyword cues in the title and body.
type ArticleType string

const (
	ArticleTypeFinancial  ArticleType = "financial"
	ArticleTypeMNA        ArticleType = "mna"
	ArticleTypePeople     ArticleType = "people"
	ArticleTypePolicy     ArticleType = "policy"
	ArticleTypeTechnology ArticleType = "technology"
	ArticleTypeGeneral    ArticleType = "general"
)

// IsValid checks if the article type is one of the known classifications.
func (t ArticleType) IsValid() bool {
	switch t {
	case ArticleTypeFinancial, ArticleTypeMNA, ArticleTypePeople,
		ArticleTypePolicy, ArticleTypeTechnology, ArticleTypeGeneral:
		return true
	}
	return false
}

// KeywordType distinguishes plain topical keywords from typed entities
// recognized in the article text.
type KeywordType string

const (
	KeywordTypeGeneral  KeywordType = "general"
	KeywordTypePerson   KeywordType = "person"
	KeywordTypeCompany  KeywordType = "company"
	KeywordTypeLocation KeywordType = "location"
	KeywordTypeDate     KeywordType = "date"
	KeywordTypeNumber   KeywordType = "number"
)

// IsValid checks if the keyword type is one of the known kinds.
func (t KeywordType) IsValid() bool {
	switch t {
	case KeywordTypeGeneral, KeywordTypePerson, KeywordTypeCompany,
		KeywordTypeLocation, KeywordTypeDate, KeywordTypeNumber:
		return true
	}
	return false
}

// Keyword is a typed keyword attached to an article.
type Keyword struct {
	Text string      `json:"text"`
	Type KeywordType `json:"type"`
}

// Category is one row of the newswire's three-level classification
// hierarchy. CodeID/CodeNm identify the assigned leaf node; the
// large/middle/small fields carry its ancestry with Korean display names.
type Category struct {
	CodeID       string `json:"code_id,omitempty"`
	CodeNm       string `json:"code_nm,omitempty"`
	LargeCode    string `json:"large_code,omitempty"`
	LargeCodeNm  string `json:"large_code_nm,omitempty"`
	MiddleCode   string `json:"middle_code,omitempty"`
	MiddleCodeNm string `json:"middle_code_nm,omitempty"`
	SmallCode    string `json:"small_code,omitempty"`
	SmallCodeNm  string `json:"small_code_nm,omitempty"`
}

// Image is an inline article image reference.
type Image struct {
	Seq     int    `json:"seq"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// Article represents a news article entity in the system: the canonical
// record produced by the feed parser and persisted by the record store.
//
// Identity is twofold. ExternalID is assigned by the newswire and is
// globally unique across feeds; InternalID is minted by the store on insert
// and is stable for the life of the row. After the insert transaction
// commits, every field except the processing-state block is immutable.
type Article struct {
	InternalID int64
	ExternalID string

	// Content. All textual fields are plain text; HTML is stripped at
	// parse time.
	Title    string
	Subtitle string
	Body     string
	Summary  string

	// Provenance.
	Writers        []string
	PublishTime    time.Time
	RegisteredTime *time.Time
	ModifiedTime   *time.Time
	SourceURL      string
	MediaCode      string
	Edition        string
	Section        string
	Page           *int

	// Classification.
	Categories []Category
	Keywords   []Keyword
	StockCodes []string
	Images     []Image

	// Derived at parse time.
	ContentHash     string
	IndexingText    string
	ImportanceScore float64
	ArticleType     ArticleType

	// Near-duplicate annotation. Set when dedup keeps the article but
	// links it to an earlier, highly similar one.
	SimilarArticleID string
	SimilarityScore  float64

	// Processing state. Transitions are monotonic: IsEmbedded only goes
	// false→true, ProcessingError only goes empty→set.
	IngestedAt      time.Time
	IsEmbedded      bool
	EmbeddingModel  string
	EmbeddedAt      *time.Time
	ProcessingError string
	VectorRef       string

	// Tombstoned marks an article whose vectors have been logically
	// removed from the ANN index.
	Tombstoned bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the structural invariants a parsed article must satisfy
// before it may enter the store.
func (a *Article) Validate() error {
	if a.ExternalID == "" {
		return &ValidationError{Field: "external_id", Message: "external_id is required"}
	}
	if a.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if a.Body == "" && a.Summary == "" {
		return &ValidationError{Field: "body", Message: "at least one of body or summary is required"}
	}
	if a.ContentHash == "" {
		return &ValidationError{Field: "content_hash", Message: "content_hash is required"}
	}
	if a.ArticleType != "" && !a.ArticleType.IsValid() {
		return &ValidationError{Field: "article_type", Message: "unknown article_type: " + string(a.ArticleType)}
	}
	if a.SourceURL != "" {
		if err := ValidateURL(a.SourceURL); err != nil {
			return err
		}
	}
	return nil
}

// CategoryNames returns the display name of every category row: the
// assigned node's own name when present, otherwise the most specific
// ancestry name. Rows carrying no names at all are skipped.
func (a *Article) CategoryNames() []string {
	if len(a.Categories) == 0 {
		return nil
	}
	names := make([]string, 0, len(a.Categories))
	for _, c := range a.Categories {
		switch {
		case c.CodeNm != "":
			names = append(names, c.CodeNm)
		case c.SmallCodeNm != "":
			names = append(names, c.SmallCodeNm)
		case c.MiddleCodeNm != "":
			names = append(names, c.MiddleCodeNm)
		case c.LargeCodeNm != "":
			names = append(names, c.LargeCodeNm)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// KeywordTexts returns the plain text of every keyword, in order.
func (a *Article) KeywordTexts() []string {
	if len(a.Keywords) == 0 {
		return nil
	}
	texts := make([]string, 0, len(a.Keywords))
	for _, k := range a.Keywords {
		texts = append(texts, k.Text)
	}
	return texts
}
