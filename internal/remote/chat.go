package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxMessageSize  = 512 * 1024      // 512KB per message
	maxResponseSize = 4 * 1024 * 1024 // 4MB response body
)

// Chat sends one message to a workspace and returns the answer text.
func (c *client) Chat(parentCtx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, errors.New("remote: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("remote: invalid request: %w", err)
	}
	if len(req.Message) > maxMessageSize {
		return nil, fmt.Errorf("remote: message too large (%d bytes, max %d)",
			len(req.Message), maxMessageSize)
	}

	slug := c.resolveWorkspace(req.Workspace)
	mode := req.Mode
	if mode == "" {
		mode = c.cfg.Mode
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	slug, err := c.ensureSlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("remote chat starting",
		zap.String("workspace", slug),
		zap.String("mode", mode),
		zap.Int("message_len", len(req.Message)),
	)

	bodyBytes, err := json.Marshal(providerChatRequest{Message: req.Message, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("remote: marshal request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, "chat", bodyBytes, c.post(c.endpoint("workspace", slug, "chat")))
	if err != nil {
		c.logger.Error("remote chat failed",
			zap.String("workspace", slug),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := c.statusError(resp)
		c.logger.Error("remote chat upstream error",
			zap.String("workspace", slug),
			zap.Int("status", resp.StatusCode),
			zap.String("message", serr.Message),
		)
		return nil, serr
	}

	var pResp providerChatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&pResp); err != nil {
		return nil, &Error{Kind: KindUpstream, Message: "decode response", Err: err}
	}

	if msg := pResp.errorMessage(); msg != "" {
		c.logger.Warn("remote chat returned error field",
			zap.String("workspace", slug),
			zap.String("error", msg),
		)
		return nil, &Error{Kind: KindUpstream, Message: msg}
	}

	text, ok := pResp.text()
	if !ok {
		return nil, &Error{Kind: KindUpstream, Message: "response has no text field"}
	}
	if !c.cfg.DebugThinking && !req.Raw {
		text = StripThinking(text)
	}
	text = strings.TrimSpace(text)

	out := &ChatResponse{
		ID:        pResp.ID,
		Workspace: slug,
		Text:      text,
	}
	for _, s := range pResp.Sources {
		out.Sources = append(out.Sources, Source{Title: s.Title, Text: s.Text})
	}

	c.logger.Info("remote chat completed",
		zap.String("workspace", slug),
		zap.Int("answer_len", len(out.Text)),
		zap.Int("sources", len(out.Sources)),
		zap.Duration("duration", time.Since(start)),
	)

	return out, nil
}

func (c *client) resolveWorkspace(ws string) string {
	ws = strings.TrimSpace(ws)
	if ws == "" {
		return c.cfg.DefaultWorkspace
	}
	return ws
}

// post returns a request builder for doWithRetry. Each attempt gets a
// fresh *http.Request.
func (c *client) post(url string) func(ctx context.Context, body []byte) (*http.Response, error) {
	return func(ctx context.Context, body []byte) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("remote: build HTTP request: %w", err)
		}
		c.authorize(httpReq)
		httpReq.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(httpReq)
	}
}

func (c *client) get(url string) func(ctx context.Context, body []byte) (*http.Response, error) {
	return func(ctx context.Context, _ []byte) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("remote: build HTTP request: %w", err)
		}
		c.authorize(httpReq)
		return c.httpClient.Do(httpReq)
	}
}

func (c *client) authorize(r *http.Request) {
	r.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	r.Header.Set("Accept", "application/json")
}

// statusError turns a non-2xx response into a *Error, preferring the
// structured message when the body carries one.
func (c *client) statusError(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	msg := truncate(strings.TrimSpace(string(body)), 200)
	var perr providerErrorResponse
	if err := json.Unmarshal(body, &perr); err == nil {
		if perr.Message != "" {
			msg = perr.Message
		} else if e := errorField(perr.Error); e != "" {
			msg = e
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Kind: KindStatus, Status: resp.StatusCode, Message: msg}
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
