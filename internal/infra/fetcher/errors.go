package fetcher

import "errors"

// Sentinel errors for enrichment fetches. Callers treat every one of them
// as "keep the wire body": enrichment is advisory and never fails a run,
// but the distinct values let tests and logs tell failure modes apart.
var (
	// ErrInvalidURL indicates the URL is malformed or uses a scheme other
	// than http/https.
	ErrInvalidURL = errors.New("invalid URL or unsupported scheme")

	// ErrPrivateIP indicates the URL resolves to a loopback, private, or
	// link-local address. Publisher pages live on the public internet;
	// anything else is an SSRF attempt or a misconfigured source.
	ErrPrivateIP = errors.New("private IP access denied (SSRF prevention)")

	// ErrTooManyRedirects indicates the redirect chain exceeded the
	// configured maximum.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates the response body exceeded the size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTimeout indicates the request exceeded the per-request timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrExtractFailed indicates the page was fetched but no readable
	// article text could be extracted from it.
	ErrExtractFailed = errors.New("content extraction failed")
)
