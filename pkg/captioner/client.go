// Package captioner generates short video captions from a still frame using
// an OpenAI-compatible vision model.
package captioner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/iconidentify/reelbot/internal/config"
)

// ErrEmptyCaption is returned when the model answers with no usable text.
var ErrEmptyCaption = errors.New("model returned an empty caption")

// Client captions images through the chat completions API.
type Client struct {
	client   openai.Client
	model    string
	maxWords int
	language string
	timeout  time.Duration
}

// NewClient creates a captioning client from cfg. cfg.APIKey must be set.
func NewClient(cfg config.CaptionConfig) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxWords := cfg.MaxWords
	if maxWords <= 0 {
		maxWords = 8
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		maxWords: maxWords,
		language: cfg.Language,
		timeout:  timeout,
	}
}

// Caption describes the image at imagePath in at most the configured number
// of words.
func (c *Client) Caption(ctx context.Context, imagePath string) (string, error) {
	dataURL, err := encodeImageDataURL(imagePath)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(c.prompt()),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL:    dataURL,
					Detail: "low",
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(64),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCaption
	}

	caption := Clean(resp.Choices[0].Message.Content, c.maxWords)
	if caption == "" {
		return "", ErrEmptyCaption
	}
	return caption, nil
}

const systemPrompt = "You write very short, plain captions for short social videos. " +
	"Reply with the caption only: no quotes, hashtags or emoji."

func (c *Client) prompt() string {
	var sb strings.Builder
	sb.WriteString("This is a frame from the middle of a short video. ")
	sb.WriteString(fmt.Sprintf("Describe what is happening in at most %d words.", c.maxWords))
	if c.language != "" {
		sb.WriteString(fmt.Sprintf(" Answer in %s.", c.language))
	}
	return sb.String()
}

// Clean strips wrapping quotes and whitespace from a model answer and cuts it
// to at most maxWords words.
func Clean(s string, maxWords int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'`“”‘’ ")

	words := strings.Fields(s)
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}

// encodeImageDataURL reads an image file and returns it as a base64 data URL.
func encodeImageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	var mimeType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mimeType = "image/png"
	case ".webp":
		mimeType = "image/webp"
	default:
		mimeType = "image/jpeg"
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
