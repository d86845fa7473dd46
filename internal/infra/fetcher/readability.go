package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"newswire-search/internal/resilience/circuitbreaker"

	"github.com/go-shiori/go-readability"
)

// ReadabilityFetcher fetches a publisher page over HTTP and extracts the
// article text with the Mozilla Readability algorithm
// (go-shiori/go-readability). It is the production enrichment fetcher:
// URLs are SSRF-validated before and during redirects, response bodies are
// size-limited while reading, each request carries its own timeout, and
// all requests flow through a shared circuit breaker so a publisher that
// starts blocking the crawler does not stall ingest runs.
//
// Safe for concurrent use.
type ReadabilityFetcher struct {
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	config  Config
}

// userAgent identifies enrichment requests in publisher access logs.
const userAgent = "NewswireSearchBot/1.0"

// NewReadabilityFetcher creates a fetcher with the given configuration.
// The underlying HTTP client enforces TLS 1.2+ and validates every
// redirect target with the same checks as the initial URL.
func NewReadabilityFetcher(config Config) *ReadabilityFetcher {
	fetcher := &ReadabilityFetcher{
		breaker: circuitbreaker.New(circuitbreaker.EnrichmentConfig()),
		config:  config,
	}

	client := &http.Client{
		Timeout: 30 * time.Second, // hard ceiling; per-request timeout comes from config
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= fetcher.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}

			// 리다이렉트 타깃도 최초 URL과 동일한 SSRF 검증을 거친다.
			if err := validateURL(req.URL.String(), fetcher.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}

			return nil
		},
	}

	fetcher.client = client
	return fetcher
}

// FetchContent fetches the page at urlStr and returns the extracted
// article text.
//
// The URL is validated first; the request itself runs through the circuit
// breaker, so when the breaker is open this returns gobreaker.ErrOpenState
// without touching the network. Callers fall back to the wire body on any
// error.
func (f *ReadabilityFetcher) FetchContent(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx, urlStr)
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// doFetch performs the HTTP request and readability extraction. Runs
// inside the circuit breaker.
func (f *ReadabilityFetcher) doFetch(ctx context.Context, urlStr string) (interface{}, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrInvalidURL, err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: request exceeded %v", ErrTimeout, f.config.Timeout)
		}
		// CheckRedirect 에러는 url.Error로 감싸여 돌아오므로 풀어서 전달한다.
		if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
			return "", urlErr.Err
		}
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Read one byte past the limit to distinguish "exactly at the limit"
	// from "over it".
	limitedReader := io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	htmlBytes, err := io.ReadAll(limitedReader)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return "", fmt.Errorf("%w: response size %d bytes exceeds limit %d bytes",
			ErrBodyTooLarge, len(htmlBytes), f.config.MaxBodySize)
	}

	// Readability resolves relative links against the final URL, which may
	// differ from urlStr after redirects.
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		parsedURL = nil
	}
	if resp.Request != nil && resp.Request.URL != nil {
		parsedURL = resp.Request.URL
	}

	htmlReader := io.NopCloser(bytes.NewReader(htmlBytes))
	article, err := readability.FromReader(htmlReader, parsedURL)
	if err != nil {
		// readability가 포기한 페이지는 셀렉터 추출로 한 번 더 시도한다.
		slog.Debug("readability extraction failed, trying selector chain",
			slog.String("url", urlStr),
			slog.Any("error", err))
		return extractBySelectors(htmlBytes)
	}

	if article.TextContent == "" {
		if article.Content == "" {
			return extractBySelectors(htmlBytes)
		}
		slog.Debug("using article Content instead of TextContent",
			slog.String("url", urlStr),
			slog.Int("content_length", len(article.Content)))
		return article.Content, nil
	}

	return article.TextContent, nil
}
