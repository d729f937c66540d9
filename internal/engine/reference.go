package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
)

const (
	// minTextLength is the minimum content length to accept as a valid read.
	// Pages returning less than this are likely login walls or empty pages.
	minTextLength = 100
	// maxRetries is the number of fetch attempts before giving up.
	maxRetries = 3
	// maxBodySize is the maximum HTTP response body size (5MB).
	maxBodySize = 5 * 1024 * 1024
)

// HTTPReferenceReader fetches reference documents (specs, scopes of work,
// submittal logs published as web pages) and extracts their readable text
// with go-readability.
type HTTPReferenceReader struct {
	client   *http.Client
	maxChars int
}

// NewHTTPReferenceReader creates a reader that keeps at most maxChars runes
// of each document. A non-positive maxChars keeps 15000.
func NewHTTPReferenceReader(timeout time.Duration, maxChars int) *HTTPReferenceReader {
	if maxChars <= 0 {
		maxChars = 15000
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReferenceReader{
		client:   &http.Client{Timeout: timeout},
		maxChars: maxChars,
	}
}

// Read fetches the URL and extracts the main content with automatic retry.
func (r *HTTPReferenceReader) Read(ctx context.Context, url string) (*Reference, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * retryBackoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		ref, err := r.read(ctx, url)
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

func (r *HTTPReferenceReader) read(ctx context.Context, url string) (*Reference, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "sitebook/1.0 (+reference reader)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parsedURL, _ := nurl.Parse(url)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	text := normalizeText(article.TextContent)
	if n := utf8.RuneCountInString(text); n < minTextLength {
		return nil, fmt.Errorf("extracted content too short (%d chars), possibly blocked or empty page", n)
	}

	return &Reference{
		Title:     article.Title,
		Byline:    article.Byline,
		Text:      truncateRunes(text, r.maxChars),
		WordCount: len(strings.Fields(text)),
	}, nil
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}

// truncateRunes truncates s to maxRunes runes (Unicode-safe).
func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "\n... [truncated]"
}
