package entity

// EntityBuckets holds the typed entities recognized in an article's text.
// Each bucket is deduplicated and ordered by first occurrence, so repeated
// extraction over the same text yields the same sequence.
type EntityBuckets struct {
	Companies []string `json:"companies,omitempty"`
	Persons   []string `json:"persons,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Dates     []string `json:"dates,omitempty"`
	Numbers   []string `json:"numbers,omitempty"`
}

// Total returns the number of entities across all buckets.
func (b EntityBuckets) Total() int {
	return len(b.Companies) + len(b.Persons) + len(b.Locations) + len(b.Dates) + len(b.Numbers)
}

// All returns every bucket flattened in a fixed order: companies, persons,
// locations, dates, numbers.
func (b EntityBuckets) All() []string {
	out := make([]string, 0, b.Total())
	out = append(out, b.Companies...)
	out = append(out, b.Persons...)
	out = append(out, b.Locations...)
	out = append(out, b.Dates...)
	out = append(out, b.Numbers...)
	return out
}

// MetadataRecord carries everything the extractor derives from a parsed
// article: length statistics, recognized entities, normalized
// classification, the importance score, and the weighted indexing text the
// retrieval layer searches over.
type MetadataRecord struct {
	ArticleID  int64  `json:"article_id,omitempty"`
	ExternalID string `json:"external_id"`

	TitleLength   int  `json:"title_length"`
	BodyLength    int  `json:"body_length"`
	SummaryLength int  `json:"summary_length"`
	TotalLength   int  `json:"total_length"`
	WordCount     int  `json:"word_count"`
	HasSummary    bool `json:"has_summary"`

	Entities   EntityBuckets `json:"entities"`
	Categories []string      `json:"categories,omitempty"`
	Keywords   []string      `json:"keywords,omitempty"`
	StockCodes []string      `json:"stock_codes,omitempty"`

	// Publish-time breakdown for time-bucketed filtering.
	Year    int    `json:"year,omitempty"`
	Month   int    `json:"month,omitempty"`
	Day     int    `json:"day,omitempty"`
	Hour    int    `json:"hour,omitempty"`
	Weekday string `json:"weekday,omitempty"`

	ArticleType     ArticleType `json:"article_type"`
	ImportanceScore float64     `json:"importance_score"`
	IndexingText    string      `json:"indexing_text"`
	MetadataHash    string      `json:"metadata_hash"`
}
