// Package sqlite provides the local-mode implementations of the repository
// interfaces. Local runs keep the whole pipeline on one machine: the record
// store lives in a single database file and the ANN index is rebuilt from
// the durable vector copies stored here.
package sqlite

import (
	"fmt"
	"strings"

	"newswire-search/internal/pkg/search"
	"newswire-search/internal/repository"
)

// ArticleQueryBuilder builds WHERE clauses for keyword search in SQLite.
// The dialect differs from the PostgreSQL builder in three places: positional
// ? placeholders cannot be reused, LIKE needs an explicit ESCAPE clause, and
// JSON membership goes through the json_each table-valued function instead
// of the JSONB operators.
type ArticleQueryBuilder struct{}

// NewArticleQueryBuilder creates a new query builder instance.
func NewArticleQueryBuilder() *ArticleQueryBuilder {
	return &ArticleQueryBuilder{}
}

// BuildWhereClause builds the WHERE clause and arguments for keyword search.
// Every token must match (AND semantics), each against title, summary, and
// indexing text. Filters narrow the result further. Tombstoned articles are
// always excluded, so the clause is never empty.
func (qb *ArticleQueryBuilder) BuildWhereClause(tokens []string, filters repository.ArticleSearchFilters, tableAlias string) (clause string, args []interface{}) {
	col := func(name string) string {
		if tableAlias != "" {
			return tableAlias + "." + name
		}
		return name
	}

	conditions := []string{col("tombstoned") + " = 0"}

	// Add token conditions (multi-token AND logic). Each token searches
	// title, summary, and the weighted indexing text; without numbered
	// placeholders the escaped pattern is bound once per column.
	for _, token := range tokens {
		escaped := search.EscapeILIKE(token)
		conditions = append(conditions, fmt.Sprintf(
			`(%s LIKE ? ESCAPE '\' OR %s LIKE ? ESCAPE '\' OR %s LIKE ? ESCAPE '\')`,
			col("title"), col("summary"), col("indexing_text")))
		args = append(args, escaped, escaped, escaped)
	}

	if filters.Category != "" {
		// categories는 JSON 텍스트 컬럼이므로 표시명을 부분 문자열로 대응
		conditions = append(conditions, col("categories")+` LIKE ? ESCAPE '\'`)
		args = append(args, search.EscapeILIKE(filters.Category))
	}

	if filters.Writer != "" {
		// writers 배열 멤버십은 json_each로 정확히 매칭
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(%s) WHERE value = ?)", col("writers")))
		args = append(args, filters.Writer)
	}

	if filters.MediaCode != "" {
		conditions = append(conditions, col("media_code")+" = ?")
		args = append(args, filters.MediaCode)
	}

	if filters.ArticleType != "" {
		conditions = append(conditions, col("article_type")+" = ?")
		args = append(args, string(filters.ArticleType))
	}

	// Range filters compare against timestamps stored as UTC text, so the
	// bound values are normalized the same way.
	if filters.From != nil {
		conditions = append(conditions, col("publish_time")+" >= ?")
		args = append(args, filters.From.UTC())
	}
	if filters.To != nil {
		conditions = append(conditions, col("publish_time")+" <= ?")
		args = append(args, filters.To.UTC())
	}

	// Join all conditions with AND
	return "WHERE " + strings.Join(conditions, " AND "), args
}
