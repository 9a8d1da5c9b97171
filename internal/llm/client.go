// Package llm implements the chat-completion client used by every
// analysis pipeline. It speaks the OpenAI wire format against any
// compatible gateway, in both streaming and non-streaming modes.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	apperrors "stock-scanner/internal/errors"
)

// Chunk is one streamed increment: a text delta plus the most recent
// usage snapshot the upstream reported, if any.
type Chunk struct {
	Text  string
	Usage *openai.Usage
}

// Client issues chat-completion requests against a resolved endpoint.
type Client struct {
	cfg   Config
	httpc *http.Client
	log   zerolog.Logger
}

// New creates a client for the given resolved configuration. The
// configured timeout bounds each individual HTTP call, including the
// full body read of a streamed response.
func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpc: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// Config returns the resolved configuration the client operates with.
func (c *Client) Config() Config {
	return c.cfg
}

// UserMessage builds a single-turn user message list.
func UserMessage(content string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: content},
	}
}

func (c *Client) newRequest(ctx context.Context, messages []openai.ChatCompletionMessage, stream bool) (*http.Request, error) {
	if c.cfg.Key == "" {
		return nil, apperrors.ErrAPIKeyMissing
	}

	body := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: 0.7,
		Stream:      stream,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Wrap(err, "marshaling chat request")
	}

	url := FormatURL(c.cfg.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, "building chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Key)
	return req, nil
}

// upstreamMessage pulls the upstream error message out of an error
// response body, falling back to the raw body text.
func upstreamMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	if msg := gjson.GetBytes(body, "error"); msg.Exists() && msg.Type == gjson.String {
		return msg.String()
	}
	return strings.TrimSpace(string(body))
}

// Complete issues one non-streaming chat request and returns the full
// response text with the upstream-reported usage.
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, *openai.Usage, error) {
	req, err := c.newRequest(ctx, messages, false)
	if err != nil {
		return "", nil, err
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("url", req.URL.String()).Msg("Chat request failed")
		return "", nil, apperrors.Wrap(err, "chat request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, apperrors.Wrap(err, "reading chat response")
	}

	c.log.Debug().
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Chat request completed")

	if resp.StatusCode != http.StatusOK {
		return "", nil, apperrors.NewUpstreamError(resp.StatusCode, upstreamMessage(body), nil)
	}

	var parsed openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", nil, apperrors.NewUpstreamError(resp.StatusCode, "malformed response body", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil, apperrors.NewUpstreamError(resp.StatusCode, "empty choice list", apperrors.ErrEmptyResponse)
	}
	content := parsed.Choices[0].Message.Content
	if content == "" {
		return "", nil, apperrors.NewUpstreamError(resp.StatusCode, "empty message content", apperrors.ErrEmptyResponse)
	}

	usage := parsed.Usage
	return content, &usage, nil
}

// Stream issues one streaming chat request and invokes onChunk for each
// text delta. Usage reported mid-stream is attached to the next emitted
// delta; usage still pending at end of stream is flushed alone with an
// empty Text. Malformed lines are skipped. A non-nil error from onChunk
// aborts the stream.
func (c *Client) Stream(ctx context.Context, messages []openai.ChatCompletionMessage, onChunk func(Chunk) error) error {
	req, err := c.newRequest(ctx, messages, true)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("url", req.URL.String()).Msg("Chat stream request failed")
		return apperrors.Wrap(err, "chat stream request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apperrors.NewUpstreamError(resp.StatusCode, upstreamMessage(body), nil)
	}

	var pendingUsage *openai.Usage
	chunkCount := 0

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "data: ")
		if line == "[DONE]" {
			break
		}

		if !gjson.Valid(line) {
			c.log.Debug().Str("line", line).Msg("Skipping malformed stream line")
			continue
		}
		if errField := gjson.Get(line, "error"); errField.Exists() {
			msg := errField.Get("message").String()
			if msg == "" {
				msg = errField.String()
			}
			return apperrors.NewUpstreamError(resp.StatusCode, msg, nil)
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			c.log.Debug().Err(err).Str("line", line).Msg("Skipping undecodable stream chunk")
			continue
		}

		if chunk.Usage != nil {
			pendingUsage = chunk.Usage
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}

		chunkCount++
		out := Chunk{Text: content, Usage: pendingUsage}
		pendingUsage = nil
		if err := onChunk(out); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return apperrors.Wrap(err, "reading chat stream")
	}

	// Usage that arrived after the last delta still has to reach the
	// accountant.
	if pendingUsage != nil {
		if err := onChunk(Chunk{Usage: pendingUsage}); err != nil {
			return err
		}
	}

	c.log.Debug().Int("chunks", chunkCount).Msg("Chat stream completed")
	return nil
}
