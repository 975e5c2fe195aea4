package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/gatecode-ai/gatecode/internal/permission"
)

const webfetchDescription = `Fetches content from a specified URL and returns it in the requested format.

Usage notes:
  - The URL must be a fully-formed valid URL starting with http:// or https://
  - This tool is read-only and does not modify any files
  - Results may be truncated if the content is very large (>5MB limit)
  - Use format "markdown" for readable content, "text" for plain text, "html" for raw HTML`

const (
	maxResponseSize    = 5 * 1024 * 1024
	defaultHTTPTimeout = 30 * time.Second
	maxHTTPTimeout     = 120 * time.Second
	maxFetchRetries    = 3
)

// WebFetchTool implements web content fetching.
type WebFetchTool struct {
	perms  *permission.Broker
	client *http.Client
}

// WebFetchInput represents the input for the webfetch tool.
type WebFetchInput struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Timeout int    `json:"timeout,omitempty"` // seconds
}

// NewWebFetchTool creates a new webfetch tool.
func NewWebFetchTool(deps Deps) *WebFetchTool {
	return &WebFetchTool{
		perms: deps.Perms,
		client: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

func (t *WebFetchTool) ID() string          { return "webfetch" }
func (t *WebFetchTool) Description() string { return webfetchDescription }

// Visibility is write: fetching arbitrary URLs leaks context to the network,
// so it is gated like the mutating tools.
func (t *WebFetchTool) Visibility() Visibility { return VisibilityWrite }

func (t *WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "The URL to fetch content from"
			},
			"format": {
				"type": "string",
				"enum": ["text", "markdown", "html"],
				"description": "The format to return the content in (text, markdown, or html)"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in seconds (max 120)"
			}
		},
		"required": ["url", "format"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WebFetchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	parsed, err := url.Parse(params.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("URL must start with http:// or https://")
	}

	if params.Format != "text" && params.Format != "markdown" && params.Format != "html" {
		return nil, fmt.Errorf("format must be 'text', 'markdown', or 'html'")
	}

	if t.perms != nil && toolCtx != nil {
		err := t.perms.Ask(ctx, permission.Request{
			SessionID: toolCtx.SessionID,
			Kind:      permission.KindWebFetch,
			Patterns:  []string{parsed.Host, params.URL},
			Title:     fmt.Sprintf("Fetch %s", params.URL),
			MessageID: toolCtx.MessageID,
			CallID:    toolCtx.CallID,
			Metadata:  map[string]any{"url": params.URL},
		})
		if err != nil {
			return nil, err
		}
	}

	timeout := defaultHTTPTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
		if timeout > maxHTTPTimeout {
			timeout = maxHTTPTimeout
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, contentType, err := t.fetch(reqCtx, params.URL, params.Format)
	if err != nil {
		return nil, err
	}

	content := string(body)
	var output string
	switch params.Format {
	case "markdown":
		output = content
		if strings.Contains(contentType, "text/html") {
			output, err = htmlToMarkdown(content)
			if err != nil {
				return nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
			}
		}
	case "text":
		output = content
		if strings.Contains(contentType, "text/html") {
			output, err = htmlToText(content)
			if err != nil {
				return nil, fmt.Errorf("failed to extract text from HTML: %w", err)
			}
		}
	default:
		output = content
	}

	return &Result{
		Title:  fmt.Sprintf("%s (%s)", params.URL, contentType),
		Output: output,
		Metadata: map[string]any{
			"url":         params.URL,
			"contentType": contentType,
			"bytes":       len(body),
		},
	}, nil
}

// fetch performs the HTTP GET with exponential backoff on transient
// failures (network errors and 5xx responses).
func (t *WebFetchTool) fetch(ctx context.Context, rawURL, format string) ([]byte, string, error) {
	var body []byte
	var contentType string

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("User-Agent", "gatecode/1.0")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		switch format {
		case "markdown":
			req.Header.Set("Accept", "text/markdown;q=1.0, text/plain;q=0.8, text/html;q=0.7, */*;q=0.1")
		case "text":
			req.Header.Set("Accept", "text/plain;q=1.0, text/markdown;q=0.9, text/html;q=0.8, */*;q=0.1")
		default:
			req.Header.Set("Accept", "text/html;q=1.0, application/xhtml+xml;q=0.9, text/plain;q=0.8, */*;q=0.1")
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("request failed with status code: %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("request failed with status code: %d", resp.StatusCode))
		}

		if resp.ContentLength > maxResponseSize {
			return backoff.Permanent(fmt.Errorf("response too large (exceeds 5MB limit)"))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if len(data) > maxResponseSize {
			return backoff.Permanent(fmt.Errorf("response too large (exceeds 5MB limit)"))
		}

		body = data
		contentType = resp.Header.Get("Content-Type")
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

// htmlToText extracts plain text from HTML, dropping scripts, styles and
// other non-content elements.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

// htmlToMarkdown converts HTML content to Markdown.
func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}
