// Package extraction talks to an OpenAI-compatible vision service. It reads
// structured fields off document images and runs the face-similarity check
// between a license photo and a selfie.
package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// Config holds the connection settings for the vision service.
type Config struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`

	// Model used for field extraction; FaceModel is used for the face
	// similarity check and falls back to Model when empty.
	Model     string `json:"model"`
	FaceModel string `json:"face_model,omitempty"`

	// Request timeout in seconds, 60 when unset.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

func (c Config) faceModel() string {
	if c.FaceModel != "" {
		return c.FaceModel
	}
	return c.Model
}

// Client is a reusable, stateless handle to the vision service, safe to
// share across concurrent requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a vision service client.
func NewClient(cfg Config) *Client {
	timeout := 60 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

const (
	maxCompletionTokens = 600
	completionsPath     = "/chat/completions"
)

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// complete sends one vision prompt with attached images and returns the raw
// text of the first choice.
func (c *Client) complete(ctx context.Context, model, prompt string, imagePaths ...string) (string, error) {
	parts := []contentPart{{Type: "text", Text: prompt}}
	for _, path := range imagePaths {
		dataURL, err := encodeImage(path)
		if err != nil {
			return "", err
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL}})
	}

	requestBody := map[string]interface{}{
		"model": model,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": parts,
			},
		},
		"max_tokens":  maxCompletionTokens,
		"temperature": 0,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completion failed with status %d: %s", resp.StatusCode, string(body))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}

	return completion.Choices[0].Message.Content, nil
}

// encodeImage reads the image at path and encodes it as a base64 data URL.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// carveJSON pulls the outermost JSON object out of model output, which may
// be wrapped in prose or code fences.
func carveJSON(text string) (map[string]interface{}, error) {
	match := jsonObjectRe.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no JSON found in model output")
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	return parsed, nil
}
