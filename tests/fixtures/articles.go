// Package fixtures provides reusable test data generators for integration tests.
// This package eliminates test data duplication and ensures consistent test content
// across different test suites.
package fixtures

import (
	"fmt"
	"strings"
	"time"

	"newswire-search/internal/domain/entity"
)

// ArticleOption is a functional option for customizing test articles.
type ArticleOption func(*entity.Article)

// NewTestArticle creates a valid parsed Article with sensible defaults: a
// Korean economy wire story that passes entity validation.
//
// Example:
//
//	article := NewTestArticle()
//	article := NewTestArticle(WithArticleExternalID("AKR20250801000002"), WithTitle("금리 동결"))
func NewTestArticle(opts ...ArticleOption) *entity.Article {
	publishTime := time.Date(2025, 8, 1, 9, 30, 0, 0, time.FixedZone("KST", 9*60*60))
	a := &entity.Article{
		InternalID: 1,
		ExternalID: "AKR20250801000001",
		Title:      "삼성전자 2분기 영업이익 10조원 돌파",
		Body:       "삼성전자가 2분기 연결 기준 영업이익 10조원을 기록했다고 1일 공시했다. 반도체 부문 수요 회복이 실적을 끌어올렸다.",
		Summary:    "삼성전자 2분기 영업이익 10조원 기록",
		Writers:    []string{"김기자"},

		PublishTime: publishTime,
		SourceURL:   "https://news.example.co.kr/articles/AKR20250801000001",
		MediaCode:   "YNA",

		Categories: []entity.Category{
			{CodeID: "ECO0101", CodeNm: "반도체", LargeCode: "ECO", LargeCodeNm: "경제"},
		},
		Keywords: []entity.Keyword{
			{Text: "삼성전자", Type: entity.KeywordTypeCompany},
			{Text: "영업이익", Type: entity.KeywordTypeGeneral},
		},
		StockCodes: []string{"005930"},

		ContentHash:     "5eb63bbbe01eeed093cb22bb8f5acdc3a1f0c9d2e4b6a8f1032547698badcfe0",
		IndexingText:    "삼성전자 영업이익 반도체 실적",
		ImportanceScore: 3.1,
		ArticleType:     entity.ArticleTypeFinancial,

		IngestedAt: publishTime.Add(2 * time.Minute),
		CreatedAt:  publishTime.Add(2 * time.Minute),
		UpdatedAt:  publishTime.Add(2 * time.Minute),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithInternalID sets the InternalID of the article.
func WithInternalID(id int64) ArticleOption {
	return func(a *entity.Article) {
		a.InternalID = id
	}
}

// WithArticleExternalID sets the ExternalID of the article.
func WithArticleExternalID(id string) ArticleOption {
	return func(a *entity.Article) {
		a.ExternalID = id
	}
}

// WithTitle sets the Title of the article.
func WithTitle(title string) ArticleOption {
	return func(a *entity.Article) {
		a.Title = title
	}
}

// WithBody sets the Body of the article.
func WithBody(body string) ArticleOption {
	return func(a *entity.Article) {
		a.Body = body
	}
}

// WithSummary sets the Summary of the article.
func WithSummary(summary string) ArticleOption {
	return func(a *entity.Article) {
		a.Summary = summary
	}
}

// WithContentHash sets the ContentHash of the article.
func WithContentHash(hash string) ArticleOption {
	return func(a *entity.Article) {
		a.ContentHash = hash
	}
}

// WithPublishTime sets the PublishTime of the article.
func WithPublishTime(t time.Time) ArticleOption {
	return func(a *entity.Article) {
		a.PublishTime = t
	}
}

// WithMediaCode sets the MediaCode of the article.
func WithMediaCode(code string) ArticleOption {
	return func(a *entity.Article) {
		a.MediaCode = code
	}
}

// WithArticleType sets the ArticleType of the article.
func WithArticleType(t entity.ArticleType) ArticleOption {
	return func(a *entity.Article) {
		a.ArticleType = t
	}
}

// WithIndexingText sets the derived IndexingText of the article.
func WithIndexingText(text string) ArticleOption {
	return func(a *entity.Article) {
		a.IndexingText = text
	}
}

// WithEmbedded marks the article as embedded with the given model.
func WithEmbedded(model string, at time.Time) ArticleOption {
	return func(a *entity.Article) {
		a.IsEmbedded = true
		a.EmbeddingModel = model
		a.EmbeddedAt = &at
	}
}

// SequentialExternalID builds a wire-style external ID from a date and a
// sequence number, e.g. SequentialExternalID("20250801", 3) returns
// "AKR20250801000003".
func SequentialExternalID(date string, seq int) string {
	return fmt.Sprintf("AKR%s%06d", date, seq)
}

// ArticleOptions configures the generated article content.
type ArticleOptions struct {
	// Length is the approximate character count (target length, ±10% variance allowed)
	Length int

	// Language specifies the content language ("korean" or "english")
	Language string
}

// GenerateArticle generates article content based on the provided options.
// The generated content is coherent Korean or English text suitable for
// chunking and embedding tests.
//
// Example:
//
//	body := GenerateArticle(ArticleOptions{
//	    Length: 2000,
//	    Language: "korean",
//	})
func GenerateArticle(opts ArticleOptions) string {
	if opts.Language == "english" {
		return generateEnglishArticle(opts.Length)
	}
	return generateKoreanArticle(opts.Length)
}

// GenerateShortArticle generates a short article body (~500 characters).
// At this length the chunker keeps the article in a single chunk.
func GenerateShortArticle() string {
	return GenerateArticle(ArticleOptions{
		Length:   500,
		Language: "korean",
	})
}

// GenerateMediumArticle generates a medium-length article body (~2000
// characters), enough to exercise multi-chunk splitting.
func GenerateMediumArticle() string {
	return GenerateArticle(ArticleOptions{
		Length:   2000,
		Language: "korean",
	})
}

// GenerateLongArticle generates a long article body (~10000 characters).
// This is useful for testing chunk caps and windowed similarity.
func GenerateLongArticle() string {
	return GenerateArticle(ArticleOptions{
		Length:   10000,
		Language: "korean",
	})
}

// generateKoreanArticle generates coherent Korean article content.
func generateKoreanArticle(targetLength int) string {
	// Base sentences for Korean wire content
	baseSentences := []string{
		"한국은행이 기준금리를 현 수준에서 동결하기로 결정했다.",
		"반도체 수출이 전년 동기 대비 두 자릿수 증가세를 이어갔다.",
		"코스피 지수는 외국인 매수세에 힘입어 상승 마감했다.",
		"정부는 하반기 경제정책방향에서 내수 회복에 방점을 찍었다.",
		"주요 대기업들이 2분기 실적을 잇달아 발표하고 있다.",
		"원·달러 환율은 소폭 하락하며 안정세를 보였다.",
		"국제 유가 상승이 수입물가에 부담으로 작용하고 있다.",
		"제조업 체감경기가 석 달 만에 개선 흐름으로 돌아섰다.",
		"금융당국은 가계부채 증가세를 면밀히 점검하겠다고 밝혔다.",
		"인공지능 투자 확대가 데이터센터 수요를 끌어올리고 있다.",
		"중소기업계는 납품단가 연동제의 조속한 정착을 요구했다.",
		"건설 경기 부진이 지역 경제 회복의 걸림돌로 지적된다.",
		"소비자물가 상승률이 두 달 연속 2%대를 유지했다.",
		"자동차 업계는 전기차 수요 둔화에 대응해 생산 계획을 조정했다.",
		"증권가는 실적 시즌을 앞두고 이익 전망치를 상향 조정했다.",
	}

	var builder strings.Builder
	currentLength := 0
	sentenceIndex := 0

	for {
		sentence := baseSentences[sentenceIndex%len(baseSentences)]
		sentenceIndex++

		// Calculate the length if we add this sentence
		sentenceLength := len([]rune(sentence))
		if currentLength > 0 {
			sentenceLength++ // Account for space
		}
		potentialLength := currentLength + sentenceLength

		// If we've reached or exceeded the minimum target (90%), check if we should stop
		if currentLength >= int(float64(targetLength)*0.9) {
			// Stop if adding this sentence would exceed 110% of target
			if potentialLength > int(float64(targetLength)*1.1) {
				break
			}
		}

		// Add spacing before sentence (except for the first one)
		if currentLength > 0 {
			builder.WriteString(" ")
		}

		builder.WriteString(sentence)
		currentLength = len([]rune(builder.String()))

		// Stop if we've reached the target
		if currentLength >= targetLength {
			break
		}
	}

	return builder.String()
}

// generateEnglishArticle generates coherent English article content.
func generateEnglishArticle(targetLength int) string {
	baseSentences := []string{
		"The central bank held its benchmark interest rate steady at the latest policy meeting.",
		"Semiconductor exports extended their double-digit growth streak from a year earlier.",
		"The benchmark stock index closed higher on the back of foreign buying.",
		"The government put domestic demand at the center of its second-half policy agenda.",
		"Major conglomerates are releasing second-quarter earnings one after another.",
		"The local currency edged up against the dollar in stable trading.",
		"Rising crude prices are weighing on import costs across manufacturing.",
		"Factory sentiment turned positive for the first time in three months.",
		"Regulators pledged close monitoring of household debt growth.",
		"Expanding AI investment keeps lifting demand for data centers.",
		"Small manufacturers renewed calls for the supply-price indexation scheme.",
		"A prolonged construction slump remains a drag on regional economies.",
		"Consumer inflation stayed in the two percent range for a second month.",
		"Carmakers adjusted production plans in response to slowing EV demand.",
		"Brokerages raised earnings estimates ahead of the reporting season.",
	}

	var builder strings.Builder
	currentLength := 0
	sentenceIndex := 0

	for {
		sentence := baseSentences[sentenceIndex%len(baseSentences)]
		sentenceIndex++

		sentenceLength := len([]rune(sentence))
		if currentLength > 0 {
			sentenceLength++
		}
		potentialLength := currentLength + sentenceLength

		if currentLength >= int(float64(targetLength)*0.9) {
			if potentialLength > int(float64(targetLength)*1.1) {
				break
			}
		}

		if currentLength > 0 {
			builder.WriteString(" ")
		}

		builder.WriteString(sentence)
		currentLength = len([]rune(builder.String()))

		if currentLength >= targetLength {
			break
		}
	}

	return builder.String()
}
