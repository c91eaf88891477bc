package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/gliderlab/relaybot/gateway/channels/types"
)

const (
	callbackDeferredMessage = 5 // DEFERRED_CHANNEL_MESSAGE_WITH_SOURCE
	maxRateLimitWait        = 5 * time.Second
	maxErrorBody            = 2048
)

// HTTPError is a non-2xx REST response.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("discord %s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

type restClient struct {
	base   string
	token  string
	http   *http.Client
	logger *zap.Logger
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type messagePayload struct {
	Content         string           `json:"content"`
	AllowedMentions allowedMentions  `json:"allowed_mentions"`
	Attachments     []attachmentMeta `json:"attachments,omitempty"`
}

type attachmentMeta struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
}

// request sends one REST call, retrying once on a short 429.
func (c *restClient) request(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		req.Header.Set("User-Agent", "DiscordBot (https://github.com/gliderlab/relaybot, 1.0)")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("discord %s %s: %w", method, path, err)
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			if wait := retryAfter(resp.Header, data); wait <= maxRateLimitWait {
				c.logger.Warn("rate limited", zap.String("path", path), zap.Duration("retry_after", wait))
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if len(data) > maxErrorBody {
				data = data[:maxErrorBody]
			}
			return &HTTPError{Method: method, Path: path, Status: resp.StatusCode, Body: string(data)}
		}
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode %s response: %w", path, err)
			}
		}
		return nil
	}
}

func (c *restClient) postJSON(ctx context.Context, method, path string, v, out any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.request(ctx, method, path, "application/json", body, out)
}

func retryAfter(h http.Header, body []byte) time.Duration {
	var rl struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(body, &rl) == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	if s, err := strconv.ParseFloat(h.Get("Retry-After"), 64); err == nil {
		return time.Duration(s * float64(time.Second))
	}
	return time.Second
}

// deferInteraction acknowledges an interaction with a "thinking" placeholder.
func (c *restClient) deferInteraction(ctx context.Context, id, token string) error {
	path := fmt.Sprintf("/interactions/%s/%s/callback", id, token)
	return c.postJSON(ctx, http.MethodPost, path, map[string]int{"type": callbackDeferredMessage}, nil)
}

// followup posts a message to a deferred interaction, as multipart when a file is attached.
func (c *restClient) followup(ctx context.Context, appID, token, content string, file *types.Attachment) error {
	path := fmt.Sprintf("/webhooks/%s/%s", appID, token)
	payload := messagePayload{Content: truncate(content, types.MaxMessageLen), AllowedMentions: allowedMentions{Parse: []string{}}}
	if file == nil {
		return c.postJSON(ctx, http.MethodPost, path, payload, nil)
	}

	payload.Attachments = []attachmentMeta{{ID: 0, Filename: file.Name}}
	body, contentType, err := multipartBody(payload, file)
	if err != nil {
		return err
	}
	return c.request(ctx, http.MethodPost, path, contentType, body, nil)
}

func multipartBody(payload messagePayload, file *types.Attachment) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	pj, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshal payload: %w", err)
	}
	if err := mw.WriteField("payload_json", string(pj)); err != nil {
		return nil, "", fmt.Errorf("write payload_json: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[0]"; filename=%q`, file.Name))
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// commandDef is a CHAT_INPUT application command with one required string option.
type commandDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        int             `json:"type"`
	Options     []commandOption `json:"options"`
}

type commandOption struct {
	Type        int    `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// overwriteCommands replaces the application's global commands.
func (c *restClient) overwriteCommands(ctx context.Context, appID string, cmds []commandDef) error {
	return c.postJSON(ctx, http.MethodPut, fmt.Sprintf("/applications/%s/commands", appID), cmds, nil)
}

// currentApplication resolves the bot's application ID from its token.
func (c *restClient) currentApplication(ctx context.Context) (string, error) {
	var app struct {
		ID string `json:"id"`
	}
	if err := c.request(ctx, http.MethodGet, "/oauth2/applications/@me", "", nil, &app); err != nil {
		return "", err
	}
	if app.ID == "" {
		return "", fmt.Errorf("application id missing from response")
	}
	return app.ID, nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
