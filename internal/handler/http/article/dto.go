// Package article provides HTTP handlers for article read and admin
// endpoints: listing, keyword search, detail lookup by internal or external
// ID, and logical deletion.
package article

import (
	"time"

	"newswire-search/internal/domain/entity"
)

// DTO represents the JSON structure for article data transfer.
type DTO struct {
	ID          int64     `json:"id" example:"1"`
	ExternalID  string    `json:"external_id" example:"AKR20240619001"`
	Title       string    `json:"title" example:"반도체 수출 역대 최대"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Body        string    `json:"body,omitempty"`
	Writers     []string  `json:"writers,omitempty"`
	PublishedAt time.Time `json:"published_at" example:"2024-06-19T10:00:00Z"`
	SourceURL   string    `json:"source_url,omitempty"`
	MediaCode   string    `json:"media_code,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	StockCodes  []string  `json:"stock_codes,omitempty"`
	ArticleType string    `json:"article_type" example:"financial"`
	Importance  float64   `json:"importance_score"`
	IsEmbedded  bool      `json:"is_embedded"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// toDTO converts an article entity to its transfer form. The body is only
// carried on detail responses; list and search responses stay summary-sized.
func toDTO(a *entity.Article, includeBody bool) DTO {
	d := DTO{
		ID:          a.InternalID,
		ExternalID:  a.ExternalID,
		Title:       a.Title,
		Subtitle:    a.Subtitle,
		Summary:     a.Summary,
		Writers:     a.Writers,
		PublishedAt: a.PublishTime,
		SourceURL:   a.SourceURL,
		MediaCode:   a.MediaCode,
		StockCodes:  a.StockCodes,
		ArticleType: string(a.ArticleType),
		Importance:  a.ImportanceScore,
		IsEmbedded:  a.IsEmbedded,
		IngestedAt:  a.IngestedAt,
	}
	if includeBody {
		d.Body = a.Body
	}
	for _, c := range a.Categories {
		if c.CodeNm != "" {
			d.Categories = append(d.Categories, c.CodeNm)
		}
	}
	for _, k := range a.Keywords {
		d.Keywords = append(d.Keywords, k.Text)
	}
	return d
}

// toDTOs converts a slice of article entities without bodies.
func toDTOs(articles []*entity.Article) []DTO {
	out := make([]DTO, 0, len(articles))
	for _, a := range articles {
		out = append(out, toDTO(a, false))
	}
	return out
}
