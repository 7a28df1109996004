package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

const hookSystemPrompt = "You are an expert at creating viral short-video hooks. " +
	"You specialize in short, punchy, attention-grabbing phrases that make people stop scrolling."

// OpenAIHookWriter asks a chat-completions model for a 3-7 word hook
// line to caption a highlight clip with.
type OpenAIHookWriter struct {
	APIKey     string
	Model      string
	BaseURL    string // overridable for tests
	HTTPClient *http.Client
	Log        *logrus.Logger
}

func NewOpenAIHookWriter(apiKey, model string, log *logrus.Logger) (*OpenAIHookWriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("hook generation requires an OpenAI API key")
	}
	return &OpenAIHookWriter{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    defaultOpenAIBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Log:        log,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// WriteHook returns a short hook for the highlight text. Errors here are
// expected to be non-fatal for the enclosing stage.
func (w *OpenAIHookWriter) WriteHook(ctx context.Context, highlightText string) (string, error) {
	if len(highlightText) > 300 {
		highlightText = highlightText[:300]
	}

	prompt := "Create a SHORT, attention-grabbing hook (3-7 words max) for this podcast clip. " +
		"Use power words, create curiosity, no quotes, return ONLY the hook text.\n\n" +
		"Podcast content: " + highlightText

	body, err := json.Marshal(chatRequest{
		Model: w.Model,
		Messages: []chatMessage{
			{Role: "system", Content: hookSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   50,
		Temperature: 0.8,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(w.BaseURL, "/")+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.APIKey)

	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("hook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("hook request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("could not parse hook response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("hook response contained no choices")
	}

	hook := normalizeHook(parsed.Choices[0].Message.Content)
	w.Log.Infof("Generated hook: %q", hook)
	return hook, nil
}

// normalizeHook strips wrapping quotes and caps the hook at seven words.
func normalizeHook(raw string) string {
	hook := strings.TrimSpace(raw)
	hook = strings.Trim(hook, `"'`)
	words := strings.Fields(hook)
	if len(words) > 7 {
		words = words[:7]
	}
	return strings.Join(words, " ")
}
