// Package brain talks to the inference backend that generates reply segments.
package brain

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

	"github.com/rs/zerolog"

	"github.com/jgarciav/vocalis/internal/turn"
)

// ChatRequest carries one user utterance to the inference endpoint.
type ChatRequest struct {
	UserInput string `json:"user_input"`
	UserID    string `json:"user_id"`
	RoleID    string `json:"role_id"`
}

// TransportError reports a failed exchange with the chat endpoint.
// StatusCode is zero when the request never produced a response.
type TransportError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("chat endpoint status %d: %s", e.StatusCode, e.Detail)
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client issues the single request/response call for a turn. Cancellation is
// context-based: aborting the turn's context (new session token) makes
// FetchResponse return (nil, nil), which callers treat as "do nothing".
type Client struct {
	chatURL   string
	resumeURL string
	client    *http.Client
	log       zerolog.Logger
}

func NewClient(chatURL, resumeURL string, log zerolog.Logger) *Client {
	return &Client{
		chatURL:   strings.TrimSpace(chatURL),
		resumeURL: strings.TrimSpace(resumeURL),
		// No fixed timeout: the call lives exactly as long as the turn's
		// context; a newer session aborts it.
		client: &http.Client{},
		log:    log,
	}
}

// FetchResponse sends the utterance and returns the normalized turn, tagged
// with the session token that owns it. A nil, nil return means the call was
// superseded by a newer session.
func (c *Client) FetchResponse(ctx context.Context, req ChatRequest, token int64) (*turn.Turn, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, &TransportError{Err: fmt.Errorf("send chat request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, &TransportError{StatusCode: res.StatusCode, Detail: string(body)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	reply, err := normalizeReply(body)
	if err != nil {
		return nil, err
	}
	reply.Input = req.UserInput
	reply.Token = token
	return reply, nil
}

// ResumeConversation triggers the backend's conversation summarization after
// a token-budget warning. Fire-and-forget: failures are logged, never
// surfaced to the turn.
func (c *Client) ResumeConversation(userID, roleID string) {
	if c.resumeURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"user_id": userID,
		"role_id": roleID,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resumeURL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("conversation resume request failed")
		return
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<10))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.log.Warn().Int("status", res.StatusCode).Msg("conversation resume rejected")
	}
}
