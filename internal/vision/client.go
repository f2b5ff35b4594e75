// Package vision implements the Vision Client (spec §4.6): the single
// analyzeFrame operation that serializes a (screenshot, accessibility
// tree, history, task) tuple to a vision-capable language model and parses
// back one structured agent action.
//
// Grounded on BaSui01-agentflow's providers/anthropic/provider.go, which
// hand-rolls the Anthropic Messages API over net/http (x-api-key header,
// system message carried separately, content-block arrays, tool_use
// blocks) rather than pulling in a dedicated SDK — no repo in the
// retrieval pack imports one, so this follows that same wire-level
// pattern instead of a fabricated dependency (see DESIGN.md).
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/time/rate"

	"github.com/tripleyak/dev-browser-studio/internal/action"
)

const defaultBaseURL = "https://api.anthropic.com"
const anthropicVersion = "2023-06-01"

// systemPrompt is fixed, per spec §4.6: it "describes the action
// vocabulary and ARIA-ref conventions."
const systemPrompt = `You are a browser automation agent. You observe a screenshot and an
accessibility snapshot of a web page, then choose exactly one action by
calling one of the provided tools.

Elements in the accessibility snapshot are annotated with [ref=eN] markers.
Prefer targeting interactive elements by their ref over raw pixel
coordinates when a ref is available.

Available actions: click, type, scroll, navigate, keyboard, wait, hover,
select, done, fail. done and fail end the task; all others act on the page
and expect another cycle to follow.`

// Request is the input to AnalyzeFrame (spec §4.6).
type Request struct {
	FrameBase64 string
	AriaSnapshot string
	History      string
	Task         string
}

// Usage mirrors audit.TokenUsage without importing the audit package,
// keeping vision a leaf.
type Usage struct {
	Input  int
	Output int
}

// Response is what AnalyzeFrame returns: the chosen action, any reasoning
// text preceding the tool-use block, and token usage.
type Response struct {
	Action    action.Action
	Reasoning string
	Usage     Usage
}

// Client is the Vision Client (spec §4.6).
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	encoding   *tiktoken.Tiktoken
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Anthropic API base URL (tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the http.Client used for requests (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outbound calls per second, guarding against runaway
// perception loops hammering the API (no pack repo exposes a vision model
// this way, but x/time/rate is already used for a different throttling
// concern in xkilldash9x-scalpel-cli's passive discovery, so this reuses
// the same library rather than hand-rolling a token bucket).
func WithRateLimit(callsPerSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), burst) }
}

// NewClient builds a Vision Client. apiKey is read from ANTHROPIC_API_KEY
// by the caller (spec §6's Environment section); model is the configured
// model name (spec §4.5).
func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		c.encoding = enc
	}
	return c
}

// EstimateTextTokens approximates a text block's token count for
// pre-flight budget checks, using tiktoken when available and falling
// back to a byte-length heuristic otherwise.
func (c *Client) EstimateTextTokens(text string) int {
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return len(text) / 4
}

type contentBlock struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *imageSource    `json:"source,omitempty"`
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type toolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type chatRequest struct {
	Model     string       `json:"model"`
	System    string       `json:"system"`
	Messages  []message    `json:"messages"`
	MaxTokens int          `json:"max_tokens"`
	Tools     []toolSchema `json:"tools"`
}

type usageResp struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type chatResponse struct {
	Content    []contentBlock `json:"content"`
	Usage      usageResp      `json:"usage"`
	StopReason string         `json:"stop_reason"`
}

type errorResp struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeFrame builds and sends the single multimodal user message, and
// parses the tool-use action back (spec §4.6).
func (c *Client) AnalyzeFrame(ctx context.Context, req Request) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var text strings.Builder
	fmt.Fprintf(&text, "## Task\n%s\n", req.Task)
	if req.History != "" {
		fmt.Fprintf(&text, "\n## Previous Actions\n%s\n", req.History)
	}
	fmt.Fprintf(&text, "\n## Current Page ARIA Snapshot\n```\n%s\n```\n", req.AriaSnapshot)
	text.WriteString("\nChoose exactly one action by calling the matching tool.")

	body := chatRequest{
		Model:  c.model,
		System: systemPrompt,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: "image/jpeg",
						Data:      req.FrameBase64,
					},
				},
				{Type: "text", Text: text.String()},
			},
		}},
		MaxTokens: 1024,
		Tools:     actionToolSchemas(),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal vision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.baseURL, "/")+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build vision request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("vision API call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read vision response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var e errorResp
		_ = json.Unmarshal(raw, &e)
		msg := e.Error.Message
		if msg == "" {
			msg = string(raw)
		}
		return Response{}, fmt.Errorf("vision API error (status %d): %s", resp.StatusCode, msg)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode vision response: %w", err)
	}

	return toResponse(parsed), nil
}

// toResponse extracts the first tool-use block's (name, input) as an
// Action, any preceding text as reasoning, and synthesizes a fail action
// when the model returned no tool-use block at all (spec §4.6).
func toResponse(resp chatResponse) Response {
	var reasoning strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if reasoning.Len() > 0 {
				reasoning.WriteString(" ")
			}
			reasoning.WriteString(block.Text)
		case "tool_use":
			var input map[string]interface{}
			_ = json.Unmarshal(block.Input, &input)
			return Response{
				Action: action.Action{Kind: action.Kind(block.Name), Input: input},
				Reasoning: reasoning.String(),
				Usage:     Usage{Input: resp.Usage.InputTokens, Output: resp.Usage.OutputTokens},
			}
		}
	}

	reason := reasoning.String()
	if reason == "" {
		reason = "model returned no tool-use action"
	}
	return Response{
		Action:    action.Action{Kind: action.KindFail, Input: map[string]interface{}{"reason": reason}},
		Reasoning: reason,
		Usage:     Usage{Input: resp.Usage.InputTokens, Output: resp.Usage.OutputTokens},
	}
}

// EncodeFrameBase64 is a small convenience wrapper so callers don't import
// encoding/base64 themselves just to build a Request.
func EncodeFrameBase64(jpegBytes []byte) string {
	return base64.StdEncoding.EncodeToString(jpegBytes)
}
