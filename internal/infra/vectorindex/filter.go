package vectorindex

import (
	"fmt"
	"slices"
	"time"
)

// Op is a comparison operator inside a filter condition.
type Op string

const (
	OpEq       Op = "eq"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

// Filterable payload fields. Category and keyword conditions test list
// membership; the rest compare scalars.
const (
	FieldArticleType = "article_type"
	FieldMediaCode   = "media_code"
	FieldCategory    = "category"
	FieldKeyword     = "keyword"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldDay         = "day"
	FieldImportance  = "importance"
	FieldPublished   = "published"
)

// allowedOps whitelists the operator set per field. Anything outside the
// table is rejected at validation time, before SQL is built from it.
var allowedOps = map[string]map[Op]bool{
	FieldArticleType: {OpEq: true},
	FieldMediaCode:   {OpEq: true},
	FieldCategory:    {OpContains: true},
	FieldKeyword:     {OpContains: true},
	FieldYear:        {OpEq: true, OpGte: true, OpLte: true},
	FieldMonth:       {OpEq: true, OpGte: true, OpLte: true},
	FieldDay:         {OpEq: true, OpGte: true, OpLte: true},
	FieldImportance:  {OpGte: true, OpLte: true},
	FieldPublished:   {OpGte: true, OpLte: true},
}

// Condition is one (field, op, value) triple.
type Condition struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Condition       { return Condition{Field: field, Op: OpEq, Value: value} }
func Gte(field string, value any) Condition      { return Condition{Field: field, Op: OpGte, Value: value} }
func Lte(field string, value any) Condition      { return Condition{Field: field, Op: OpLte, Value: value} }
func Contains(field string, value string) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

// Filter restricts a query to datapoints matching at least one clause,
// where a clause is a conjunction of conditions (disjunctive normal form).
type Filter struct {
	Clauses [][]Condition
}

// NewFilter builds a single-clause filter: every condition must hold.
func NewFilter(conds ...Condition) *Filter {
	if len(conds) == 0 {
		return nil
	}
	return &Filter{Clauses: [][]Condition{conds}}
}

// Or appends an alternative clause and returns the filter for chaining.
func (f *Filter) Or(conds ...Condition) *Filter {
	if len(conds) > 0 {
		f.Clauses = append(f.Clauses, conds)
	}
	return f
}

// Validate rejects unknown fields, operators outside the per-field
// whitelist, and values of the wrong type. A nil filter is valid.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	if len(f.Clauses) == 0 {
		return fmt.Errorf("filter has no clauses")
	}
	for _, clause := range f.Clauses {
		if len(clause) == 0 {
			return fmt.Errorf("filter clause is empty")
		}
		for _, c := range clause {
			ops, ok := allowedOps[c.Field]
			if !ok {
				return fmt.Errorf("unknown filter field %q", c.Field)
			}
			if !ops[c.Op] {
				return fmt.Errorf("operator %q not allowed on field %q", c.Op, c.Field)
			}
			if err := checkValueType(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkValueType(c Condition) error {
	switch c.Field {
	case FieldArticleType, FieldMediaCode, FieldCategory, FieldKeyword:
		if _, ok := c.Value.(string); !ok {
			return fmt.Errorf("field %q needs a string value, got %T", c.Field, c.Value)
		}
	case FieldYear, FieldMonth, FieldDay:
		if _, ok := c.Value.(int); !ok {
			return fmt.Errorf("field %q needs an int value, got %T", c.Field, c.Value)
		}
	case FieldImportance:
		if _, ok := c.Value.(float64); !ok {
			return fmt.Errorf("field %q needs a float64 value, got %T", c.Field, c.Value)
		}
	case FieldPublished:
		if _, ok := c.Value.(time.Time); !ok {
			return fmt.Errorf("field %q needs a time.Time value, got %T", c.Field, c.Value)
		}
	}
	return nil
}

// Matches evaluates the filter against one datapoint's payload. The filter
// must have been validated; unvalidated conditions evaluate to false rather
// than panic.
func (f *Filter) Matches(dp *Datapoint) bool {
	if f == nil {
		return true
	}
	for _, clause := range f.Clauses {
		if clauseMatches(clause, dp) {
			return true
		}
	}
	return false
}

func clauseMatches(clause []Condition, dp *Datapoint) bool {
	for _, c := range clause {
		if !conditionMatches(c, dp) {
			return false
		}
	}
	return true
}

func conditionMatches(c Condition, dp *Datapoint) bool {
	switch c.Field {
	case FieldArticleType:
		v, ok := c.Value.(string)
		return ok && dp.ArticleType == v
	case FieldMediaCode:
		v, ok := c.Value.(string)
		return ok && dp.MediaCode == v
	case FieldCategory:
		v, ok := c.Value.(string)
		return ok && slices.Contains(dp.Categories, v)
	case FieldKeyword:
		v, ok := c.Value.(string)
		return ok && slices.Contains(dp.Keywords, v)
	case FieldYear:
		return compareInt(dp.Year, c)
	case FieldMonth:
		return compareInt(dp.Month, c)
	case FieldDay:
		return compareInt(dp.Day, c)
	case FieldImportance:
		v, ok := c.Value.(float64)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGte:
			return dp.Importance >= v
		case OpLte:
			return dp.Importance <= v
		}
		return false
	case FieldPublished:
		v, ok := c.Value.(time.Time)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGte:
			return !dp.PublishedAt.Before(v)
		case OpLte:
			return !dp.PublishedAt.After(v)
		}
		return false
	}
	return false
}

func compareInt(have int, c Condition) bool {
	v, ok := c.Value.(int)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return have == v
	case OpGte:
		return have >= v
	case OpLte:
		return have <= v
	}
	return false
}
