package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pyiy/zimage/internal/apierr"
	"github.com/pyiy/zimage/internal/gradio"
)

const (
	defaultOptimizerEndpoint = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"

	// optimizeSuffix is appended to the configurable base prompt; the
	// {language} token is substituted per request.
	optimizeSuffix = " Rewrite the user's prompt into a richer, more detailed image prompt. Respond in {language} with the rewritten prompt only, no explanations."
)

// Optimizer rewrites prompts through a chat-completion-shaped backend. It is
// a single synchronous request/response exchange, not a job queue.
type Optimizer struct {
	httpClient gradio.HTTPClient
	endpoint   string
	model      string
	basePrompt string
	logger     *slog.Logger
}

// NewOptimizer creates the prompt optimizer. Empty endpoint, model or base
// prompt keep sensible defaults.
func NewOptimizer(httpClient gradio.HTTPClient, endpoint, chatModel, basePrompt string, logger *slog.Logger) *Optimizer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if endpoint == "" {
		endpoint = defaultOptimizerEndpoint
	}
	return &Optimizer{
		httpClient: httpClient,
		endpoint:   endpoint,
		model:      chatModel,
		basePrompt: basePrompt,
		logger:     logger.With("component", "provider", "backend", "optimizer"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Optimize rewrites prompt in the given language. A successful-but-empty
// response falls back to the original prompt unchanged.
func (o *Optimizer) Optimize(ctx context.Context, credential, prompt, language string) (string, error) {
	if language == "" {
		language = "English"
	}
	system := o.basePrompt + strings.ReplaceAll(optimizeSuffix, "{language}", language)

	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Stream: false,
	})
	if err != nil {
		return "", apierr.Wrap(apierr.KindOptimizeFailed, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apierr.Wrap(apierr.KindOptimizeFailed, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", apierr.Wrap(apierr.KindOptimizeFailed, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apierr.New(apierr.KindQuotaExhausted, "optimizer returned 429")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierr.Newf(apierr.KindOptimizeFailed, "optimizer returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", apierr.Wrap(apierr.KindOptimizeFailed, "decode response", err)
	}

	if len(chat.Choices) == 0 || strings.TrimSpace(chat.Choices[0].Message.Content) == "" {
		o.logger.Warn("Optimizer returned no content, echoing the original prompt")
		return prompt, nil
	}
	return strings.TrimSpace(chat.Choices[0].Message.Content), nil
}
