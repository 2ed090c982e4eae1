// Package httptool implements the Http built-in tool (spec §4.5): an
// SSRF-guarded HTTP client with HTML-to-text stripping and a bounded
// response size.
package httptool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/rrclaw/rrclaw/internal/net/ssrf"
	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

const (
	maxResponseBytes  = 1 * 1024 * 1024
	strippedSizeLimit = 200 * 1024
	requestTimeout    = 20 * time.Second
)

var allowedMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodHead: true,
}

// Extractor performs the optional mini-LLM extraction step (spec §4.5):
// given an oversized stripped body and a caller-supplied extract hint, it
// returns only the requested fields. Implemented by internal/providers
// callers; kept as a narrow interface here to avoid an import cycle.
type Extractor interface {
	Extract(ctx context.Context, body, hint string) (string, error)
}

// Tool performs SSRF-guarded HTTP requests.
type Tool struct {
	client    *http.Client
	extractor Extractor
}

// New creates an Http tool. extractor may be nil, in which case oversized
// bodies are truncated with a retry hint instead of summarized.
func New(extractor Extractor) *Tool {
	return &Tool{client: &http.Client{Timeout: requestTimeout}, extractor: extractor}
}

func (t *Tool) Name() string        { return "http" }
func (t *Tool) Description() string { return "Make an SSRF-guarded HTTP request." }

func (t *Tool) ParametersSchema() []byte {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"method":  map[string]any{"type": "string", "enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"}},
			"url":     map[string]any{"type": "string", "description": "http or https URL."},
			"headers": map[string]any{"type": "object", "description": "Optional request headers."},
			"body":    map[string]any{"type": "string", "description": "Optional request body."},
			"extract": map[string]any{"type": "string", "description": "Fields to extract from an oversized response body."},
		},
		"required": []string{"method", "url"},
	}
	b, _ := json.Marshal(schema)
	return b
}

func (t *Tool) ConfirmationRequired() bool { return false }

type httpArgs struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	Extract string            `json:"extract"`
}

func (t *Tool) PreValidate(args []byte, policy *security.Policy) (string, bool) {
	var in httpArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false
	}
	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if !allowedMethods[method] {
		return fmt.Sprintf("method %q is not supported", in.Method), false
	}
	parsed, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err), false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "URL scheme must be http or https", false
	}
	if parsed.Hostname() == "" {
		return "URL must have a hostname", false
	}
	if !policy.IsHostAllowed(parsed.Hostname()) {
		return fmt.Sprintf("host %q is not in the allowed host list", parsed.Hostname()), false
	}
	if err := ssrf.ValidatePublicHostname(parsed.Hostname()); err != nil {
		return err.Error(), false
	}
	return "", true
}

func (t *Tool) Execute(ctx context.Context, args []byte, policy *security.Policy) (*models.ToolResult, error) {
	var in httpArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	method := strings.ToUpper(strings.TrimSpace(in.Method))

	var bodyReader io.Reader
	if in.Body != "" {
		bodyReader = strings.NewReader(in.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, in.URL, bodyReader)
	if err != nil {
		return fail(fmt.Sprintf("build request: %v", err)), nil
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", "rrclaw/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return fail(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(fmt.Sprintf("read response: %v", err)), nil
	}

	contentType := resp.Header.Get("Content-Type")
	body := string(raw)
	if strings.Contains(contentType, "text/html") {
		body = stripHTML(body)
	}

	if len(body) > strippedSizeLimit {
		if in.Extract != "" && t.extractor != nil {
			extracted, err := t.extractor.Extract(ctx, body, in.Extract)
			if err == nil {
				body = extracted
			} else {
				body = body[:strippedSizeLimit] + "\n...[truncated; extraction failed: " + err.Error() + "]"
			}
		} else {
			body = body[:strippedSizeLimit] + "\n...[truncated; retry with an \"extract\" hint for a summarized result]"
		}
	}

	payload, _ := json.Marshal(map[string]any{
		"status":       resp.StatusCode,
		"content_type": contentType,
		"body":         body,
	})

	if resp.StatusCode >= 400 {
		return &models.ToolResult{Success: false, Output: string(payload), Error: fmt.Sprintf("HTTP error: %d", resp.StatusCode)}, nil
	}
	return &models.ToolResult{Success: true, Output: string(payload)}, nil
}

// stripHTML renders an HTML document down to its text content, dropping
// script/style/head elements, using a real tokenizer rather than regex so
// malformed markup degrades gracefully (grounded on the teacher's web
// extraction tool, ported from its regex approach to golang.org/x/net/html
// per SPEC_FULL.md §11).
func stripHTML(doc string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	var sb strings.Builder
	skipDepth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(sb.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" || tag == "head" || tag == "noscript" {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" || tag == "head" || tag == "noscript" {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func fail(msg string) *models.ToolResult {
	return &models.ToolResult{Success: false, Error: msg}
}
