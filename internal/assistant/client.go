// Package assistant calls the Gemini text-generation REST API for
// bulletin-board drafting and thread summaries. Every failure path ends in
// a fixed human-readable fallback string; callers never see a transport
// error.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Fallback strings shown when the service cannot answer. The missing-key
// variants match the portal's profile-settings hint.
const (
	FallbackDraftNoKey     = "API Keyが設定されていません。プロフィール設定からキーを保存してください。"
	FallbackDraftError     = "Error interacting with AI service."
	FallbackDraftEmpty     = "Failed to generate text."
	FallbackSummaryNoKey   = "API Keyが設定されていません。"
	FallbackSummaryError   = "Error generating summary."
	FallbackSummaryEmpty   = "Summary unavailable."
)

// Client calls the Gemini generateContent endpoint.
type Client struct {
	BaseURL string
	Model   string
	APIKey  string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. Skip short-circuits every call with canned text
// for offline development.
func New(baseURL, model, apiKey string, skip bool) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Client{
		BaseURL: baseURL,
		Model:   model,
		APIKey:  apiKey,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GenerateDraft produces a short bulletin-board post for the given topic
// and tone. Best effort: any failure returns a fallback string.
func (c *Client) GenerateDraft(ctx context.Context, topic, tone string) string {
	if c.Skip {
		return fmt.Sprintf("【%s】%sのトーンで書かれた下書きです。", topic, tone)
	}
	if c.APIKey == "" {
		return FallbackDraftNoKey
	}
	prompt := fmt.Sprintf(`Write a short, professional bulletin board message for a company internal board.
Topic: %s
Tone: %s
Language: Japanese.
Keep it under 200 words. Format properly.`, topic, tone)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		log.Printf("assistant: draft generation failed: %v", err)
		return FallbackDraftError
	}
	if text == "" {
		return FallbackDraftEmpty
	}
	return text
}

// Summarize condenses a thread and its comments into three bullet points.
// Best effort: any failure returns a fallback string.
func (c *Client) Summarize(ctx context.Context, content string, comments []string) string {
	if c.Skip {
		return "・要点1\n・要点2\n・要点3"
	}
	if c.APIKey == "" {
		return FallbackSummaryNoKey
	}
	commentsText := ""
	if len(comments) > 0 {
		commentsText = "\nComments:\n" + strings.Join(comments, "\n")
	}
	prompt := fmt.Sprintf(`Summarize the following discussion thread into 3 bullet points in Japanese.

Main Post: %s
%s`, content, commentsText)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		log.Printf("assistant: summarize failed: %v", err)
		return FallbackSummaryError
	}
	if text == "" {
		return FallbackSummaryEmpty
	}
	return text
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	})
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), nil
}
