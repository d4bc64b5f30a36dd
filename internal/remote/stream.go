package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// StreamChat sends one message and streams the answer as it is generated.
// The channel is closed after the final chunk or the first error.
// Deltas are forwarded as produced; reasoning blocks are not filtered.
func (c *client) StreamChat(parentCtx context.Context, req *ChatRequest) (<-chan StreamResult, error) {
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

	c.logger.Debug("remote stream starting",
		zap.String("workspace", slug),
		zap.String("mode", mode),
	)

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	results := make(chan StreamResult, 16)

	go func() {
		defer close(results)
		defer cancel()

		send := func(r StreamResult) bool {
			select {
			case <-ctx.Done():
				return false
			case results <- r:
				return true
			}
		}

		slug, err := c.ensureSlug(ctx, slug)
		if err != nil {
			send(StreamResult{Err: err})
			return
		}

		bodyBytes, err := json.Marshal(providerChatRequest{Message: req.Message, Mode: mode})
		if err != nil {
			send(StreamResult{Err: fmt.Errorf("remote: marshal stream request: %w", err)})
			return
		}

		// retries cover connecting only, never a stream in progress
		resp, err := c.doWithRetry(ctx, "stream_chat", bodyBytes, c.post(c.endpoint("workspace", slug, "stream-chat")))
		if err != nil {
			c.logger.Error("remote stream connect failed",
				zap.String("workspace", slug),
				zap.Error(err),
			)
			send(StreamResult{Err: err})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			serr := c.statusError(resp)
			c.logger.Error("remote stream upstream error",
				zap.String("workspace", slug),
				zap.Int("status", resp.StatusCode),
				zap.String("message", serr.Message),
			)
			send(StreamResult{Err: serr})
			return
		}

		n, err := c.pump(ctx, resp.Body, send)
		if err != nil {
			c.logger.Warn("remote stream failed",
				zap.String("workspace", slug),
				zap.Int("chunks", n),
				zap.Error(err),
			)
			send(StreamResult{Err: err})
			return
		}
		c.logger.Info("remote stream finished",
			zap.String("workspace", slug),
			zap.Int("chunks", n),
		)
	}()

	return results, nil
}

const maxEventSize = 1 << 20

// pump forwards server-sent events from body until the upstream closes the
// stream, the body ends or send refuses a chunk. It returns the number of
// chunks delivered.
func (c *client) pump(ctx context.Context, body io.Reader, send func(StreamResult) bool) (int, error) {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	n := 0
	for sc.Scan() {
		chunk, err := decodeEvent(sc.Bytes())
		if err != nil {
			return n, err
		}
		if chunk == nil {
			continue
		}
		if !send(StreamResult{Chunk: chunk}) {
			return n, nil
		}
		n++
		if chunk.Close {
			return n, nil
		}
	}

	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return n, transportError("stream", ctx.Err())
		}
		return n, transportError("read stream", err)
	}
	return n, nil
}

// decodeEvent parses one "data:" line. Other lines, keep-alives and empty
// deltas yield a nil chunk.
func decodeEvent(line []byte) (*StreamChunk, error) {
	payload, ok := bytes.CutPrefix(bytes.TrimSpace(line), []byte("data:"))
	if !ok {
		return nil, nil
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, nil
	}

	var ev providerStreamChunk
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, &Error{Kind: KindUpstream, Message: "decode stream chunk", Err: err}
	}
	if msg := errorField(ev.Error); msg != "" {
		return nil, &Error{Kind: KindUpstream, Message: msg}
	}
	if ev.TextResponse == "" && !ev.Close {
		return nil, nil
	}
	return &StreamChunk{Delta: ev.TextResponse, Close: ev.Close}, nil
}
