// Package client holds adapters for outbound HTTP APIs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("infra/client")

const serviceName = "mistral"

// ErrMissingAPIKey is returned by Complete when no API key is configured.
var ErrMissingAPIKey = errors.New("MISTRAL_API_KEY não configurada")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// FirstMessage returns the trimmed content of the first choice.
func (r chatCompletionResponse) FirstMessage() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}

// MistralClient calls the Mistral chat-completion API with a single user message.
type MistralClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	metrics    *observability.Metrics
}

// NewMistralClient creates a new MistralClient. metrics may be nil.
func NewMistralClient(httpClient *http.Client, baseURL, apiKey, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *MistralClient {
	return &MistralClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
		metrics:    metrics,
	}
}

// Complete sends prompt as the only user message and returns the trimmed reply.
func (c *MistralClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "MistralClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	if c.apiKey == "" {
		return "", &domain.ErrExternalService{Service: serviceName, Err: ErrMissingAPIKey}
	}

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return "", &domain.ErrTimeout{Operation: "mistral bulkhead"}
	}
	defer c.bulkhead.Release()

	result, err := c.cb.Execute(func() (any, error) {
		var decoded chatCompletionResponse
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var err error
			decoded, err = c.post(ctx, prompt)
			return err
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return decoded, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if c.metrics != nil {
			c.metrics.IncrExternalError(serviceName)
		}
		return "", c.mapError(ctx, err)
	}

	resp := result.(chatCompletionResponse)
	if c.metrics != nil {
		c.metrics.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	content := resp.FirstMessage()
	if content == "" {
		return "", &domain.ErrExternalService{Service: serviceName, Err: errors.New("resposta vazia")}
	}
	return content, nil
}

func (c *MistralClient) post(ctx context.Context, prompt string) (chatCompletionResponse, error) {
	var decoded chatCompletionResponse

	body, err := json.Marshal(chatCompletionRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return decoded, resilience.Permanent(err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return decoded, resilience.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return decoded, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := fmt.Errorf("mistral API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		// 429 and 5xx are worth retrying, other 4xx are not
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return decoded, resilience.Permanent(statusErr)
		}
		return decoded, statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return decoded, resilience.Permanent(fmt.Errorf("decode mistral response: %w", err))
	}
	return decoded, nil
}

func (c *MistralClient) mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: serviceName}
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return &domain.ErrTimeout{Operation: "mistral chat completion"}
	default:
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}
}
