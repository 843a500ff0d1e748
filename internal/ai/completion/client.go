// Package completion implements ai.Generator against an OpenAI compatible
// chat completions endpoint, such as the Gemini OpenAI bridge.
package completion

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/ai"
	"github.com/spigell/cv-screener/internal/logger"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultModel    = "gemini-2.5-flash"
	providerName    = "completion"

	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "spigell/cv-screener"

	maxResponseBytes = 8 << 20
)

// Options configure a Client.
type Options struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxAttempts int
	JSON        bool
	HTTPClient  *http.Client
}

// Client calls <endpoint>/chat/completions.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	maxAttempts int
	json        bool
	httpClient  *http.Client
	logger      *zap.Logger
	wait        func(ctx context.Context, d time.Duration) error
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type request struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type choice struct {
	Message struct {
		Content string `mapstructure:"content"`
	} `mapstructure:"message"`
	FinishReason string `mapstructure:"finish_reason"`
}

type response struct {
	Choices []choice `mapstructure:"choices"`
}

// New creates a Client. An empty endpoint means DefaultEndpoint.
func New(opts Options, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("completion api key is required")
	}

	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       model,
		maxAttempts: opts.MaxAttempts,
		json:        opts.JSON,
		httpClient:  httpClient,
		logger:      logger.WithAIFields(log, providerName, model),
	}, nil
}

// GenerateContent posts a system and a user message and returns the first choice.
func (c *Client) GenerateContent(ctx context.Context, system, userMessage string) (string, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return "", errors.New("message must not be empty")
	}

	payload := request{Model: c.model}
	if system = strings.TrimSpace(system); system != "" {
		payload.Messages = append(payload.Messages, message{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, message{Role: "user", Content: userMessage})
	if c.json {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	return ai.Retry(ctx, ai.RetryPolicy{Attempts: c.maxAttempts, Wait: c.wait}, c.logger, func(ctx context.Context) (string, error) {
		return c.post(ctx, body)
	})
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req = c.setHeaders(req)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", ai.Transient(fmt.Errorf("completion request: %w", err), 0)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return "", ai.Transient(fmt.Errorf("read completion response: %w", err), 0)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("bad status: %s", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", ai.Transient(statusErr, retryAfter(resp.Header.Get("Retry-After")))
		}
		return "", statusErr
	}

	return parseResponse(data)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Content-Type", contentType)

	return req
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(io.LimitReader(reader, maxResponseBytes))
}

func parseResponse(data []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	var resp response
	if err := mapstructure.Decode(raw, &resp); err != nil {
		return "", fmt.Errorf("decode completion choices: %w", err)
	}

	for _, ch := range resp.Choices {
		if text := strings.TrimSpace(ch.Message.Content); text != "" {
			return text, nil
		}
	}

	return "", errors.New("completion api returned empty response")
}

func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}
