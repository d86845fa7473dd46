// Package postgres provides PostgreSQL implementations of repository interfaces.
package postgres

import (
	"fmt"
	"strings"

	"newswire-search/internal/pkg/search"
	"newswire-search/internal/repository"
)

// ArticleQueryBuilder builds WHERE clauses for keyword search in PostgreSQL.
// This builder is shared between COUNT and SELECT queries to eliminate duplication.
// It uses PostgreSQL-specific features like ILIKE and numbered placeholders ($1, $2, etc.).
type ArticleQueryBuilder struct{}

// NewArticleQueryBuilder creates a new query builder instance.
func NewArticleQueryBuilder() *ArticleQueryBuilder {
	return &ArticleQueryBuilder{}
}

// BuildWhereClause builds the WHERE clause and arguments for keyword search.
// Every token must match (AND semantics), each against title, summary, and
// indexing text using ILIKE. Filters narrow the result further. Tombstoned
// articles are always excluded, so the clause is never empty.
func (qb *ArticleQueryBuilder) BuildWhereClause(tokens []string, filters repository.ArticleSearchFilters, tableAlias string) (clause string, args []interface{}) {
	col := func(name string) string {
		if tableAlias != "" {
			return tableAlias + "." + name
		}
		return name
	}

	conditions := []string{"NOT " + col("tombstoned")}
	paramIndex := 1

	// Add token conditions (multi-token AND logic). Each token searches
	// title, summary, and the weighted indexing text.
	for _, token := range tokens {
		escaped := search.EscapeILIKE(token)
		conditions = append(conditions, fmt.Sprintf(
			"(%s ILIKE $%d OR %s ILIKE $%d OR %s ILIKE $%d)",
			col("title"), paramIndex, col("summary"), paramIndex, col("indexing_text"), paramIndex))
		args = append(args, escaped)
		paramIndex++
	}

	if filters.Category != "" {
		// categories는 코드/표시명 객체의 JSONB 배열이므로 표시명을 텍스트 매칭으로 대응
		conditions = append(conditions, fmt.Sprintf("%s::text ILIKE $%d", col("categories"), paramIndex))
		args = append(args, search.EscapeILIKE(filters.Category))
		paramIndex++
	}

	if filters.Writer != "" {
		// writers는 문자열 JSONB 배열이므로 ? 멤버십 연산자로 정확히 매칭
		conditions = append(conditions, fmt.Sprintf("%s ? $%d", col("writers"), paramIndex))
		args = append(args, filters.Writer)
		paramIndex++
	}

	if filters.MediaCode != "" {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("media_code"), paramIndex))
		args = append(args, filters.MediaCode)
		paramIndex++
	}

	if filters.ArticleType != "" {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("article_type"), paramIndex))
		args = append(args, string(filters.ArticleType))
		paramIndex++
	}

	// Add publish time range filters
	if filters.From != nil {
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", col("publish_time"), paramIndex))
		args = append(args, *filters.From)
		paramIndex++
	}
	if filters.To != nil {
		conditions = append(conditions, fmt.Sprintf("%s <= $%d", col("publish_time"), paramIndex))
		args = append(args, *filters.To)
	}

	// Join all conditions with AND
	return "WHERE " + strings.Join(conditions, " AND "), args
}
