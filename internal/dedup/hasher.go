// Package dedup implements content fingerprinting and duplicate detection
// for ingested articles: deterministic content hashes over normalized text,
// and a detector that classifies a candidate article against the existing
// store as unique, an exact duplicate, or a near duplicate.
package dedup

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"newswire-search/internal/utils/text"
)

// Strength selects the hash function used for content fingerprints. Only
// the active strength is persisted; switching strengths invalidates stored
// hashes, so it is a migration, not a toggle.
type Strength string

const (
	StrengthMD5    Strength = "md5"    // 128-bit, the default
	StrengthSHA1   Strength = "sha1"   // 160-bit
	StrengthSHA256 Strength = "sha256" // 256-bit
)

// IsValid checks if the strength is one of the supported hash functions.
func (s Strength) IsValid() bool {
	switch s {
	case StrengthMD5, StrengthSHA1, StrengthSHA256:
		return true
	}
	return false
}

// Hasher produces the content fingerprints the dedup layer and the store's
// uniqueness constraint rely on. All text inputs are normalized first, so
// markup, punctuation, case, and whitespace differences never change a hash.
type Hasher struct {
	strength Strength
}

// NewHasher returns a Hasher using the given strength. An unknown strength
// falls back to MD5.
func NewHasher(strength Strength) *Hasher {
	if !strength.IsValid() {
		strength = StrengthMD5
	}
	return &Hasher{strength: strength}
}

// Strength returns the active hash strength.
func (h *Hasher) Strength() Strength {
	return h.strength
}

// ContentHash fingerprints an article's textual content. The three fields
// are joined with single spaces and normalized as one string; the result is
// the lowercase hex digest of the active hash function.
//
// ContentHash is deterministic: identical (title, body, summary) triples
// always produce identical hashes, regardless of markup or whitespace.
func (h *Hasher) ContentHash(title, body, summary string) string {
	content := text.Normalize(title + " " + body + " " + summary)
	return h.sum([]byte(content))
}

// TitleHash fingerprints the normalized title alone. Used for the
// title-duplicate annotation, never for rejection.
func (h *Hasher) TitleHash(title string) string {
	return h.sum([]byte(text.Normalize(title)))
}

// FileHash fingerprints raw input bytes before parsing, so already-seen
// feed files can be skipped without re-parsing them.
func (h *Hasher) FileHash(raw []byte) string {
	return h.sum(raw)
}

func (h *Hasher) sum(b []byte) string {
	var hf hash.Hash
	switch h.strength {
	case StrengthSHA1:
		hf = sha1.New()
	case StrengthSHA256:
		hf = sha256.New()
	default:
		hf = md5.New()
	}
	hf.Write(b)
	return hex.EncodeToString(hf.Sum(nil))
}

// HexLength returns the hex digest length the active strength produces.
// The store uses it to size and sanity-check hash columns.
func (h *Hasher) HexLength() int {
	switch h.strength {
	case StrengthSHA1:
		return 40
	case StrengthSHA256:
		return 64
	default:
		return 32
	}
}

// ValidateDigest checks that a persisted digest matches the active
// strength's shape.
func (h *Hasher) ValidateDigest(digest string) error {
	if len(digest) != h.HexLength() {
		return fmt.Errorf("ValidateDigest: digest length %d does not match strength %s (want %d)",
			len(digest), h.strength, h.HexLength())
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return fmt.Errorf("ValidateDigest: %w", err)
	}
	return nil
}
