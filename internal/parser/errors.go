package parser

import "errors"

// Sentinel errors returned by Parse. Callers classify failures with
// errors.Is; everything else wrapping these is context.
var (
	// ErrMalformed indicates the input is not well-formed XML.
	ErrMalformed = errors.New("malformed xml")

	// ErrMissingArticle indicates the document contains no article element.
	ErrMissingArticle = errors.New("missing article element")

	// ErrMissingIdentity indicates the article element carries no external
	// identifier (art_id).
	ErrMissingIdentity = errors.New("missing article identity")
)
