package embedder

import (
	"crypto/md5"
	"encoding/hex"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/utils/text"
)

const (
	// inputRuneLimit caps the embedding input. Both model backends
	// truncate around this many tokens anyway; cutting here keeps the
	// text hash stable across backends.
	inputRuneLimit = 512

	// titleRepeat weights the title against the body by repetition.
	titleRepeat = 2
)

// assemble joins the cleaned representative fields: title repeated, then
// summary, then body.
func assemble(a *entity.Article) string {
	title := text.Clean(a.Title)
	summary := text.Clean(a.Summary)
	body := text.Clean(a.Body)

	combined := title
	for i := 1; i < titleRepeat; i++ {
		combined += " " + title
	}
	combined += " " + summary + " " + body

	return combined
}

// BuildInput assembles the representative text an article is embedded as:
// each field is tag-stripped, reduced to letters/digits/whitespace, and
// whitespace-collapsed, then joined as title, title again, summary, body,
// truncated to the rune limit. Deterministic, so the same article always
// hashes and embeds identically.
func BuildInput(a *entity.Article) string {
	return text.TruncateRunes(assemble(a), inputRuneLimit)
}

// BuildChunkInput is the uncapped variant of BuildInput, used when the
// article is split into chunks before embedding. Same field order and
// cleaning; the chunker owns the length budget instead of the rune limit.
func BuildChunkInput(a *entity.Article) string {
	return assemble(a)
}

// InputHash fingerprints the exact text handed to the model. Stored next to
// the vector; a matching hash means re-embedding is a no-op.
func InputHash(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}
