package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"PerplexityAssistant/internal/config"
	"PerplexityAssistant/internal/session"
)

// StatusError is returned when the API answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed: %d", e.StatusCode)
}

// Client calls the Perplexity chat completions endpoint.
type Client struct {
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *slog.Logger
	tracer      trace.Tracer
	meter       metric.Meter
}

// NewClient creates a completion client from cfg. The HTTP client has no
// deadline of its own; only ctx bounds a call.
func NewClient(cfg config.Config, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) *Client {
	return &Client{
		endpoint:    cfg.APIEndpoint,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{},
		logger:      logger,
		tracer:      tracer,
		meter:       meter,
	}
}

// Complete sends the whole transcript and returns the first choice.
func (c *Client) Complete(ctx context.Context, apiKey string, messages []session.Message) (Reply, error) {
	ctx, span := c.tracer.Start(ctx, "perplexity_api_call",
		trace.WithAttributes(
			attribute.String("llm.model", c.model),
			attribute.Int("llm.message_count", len(messages)),
		),
	)
	defer span.End()

	reply, err := c.complete(ctx, apiKey, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.countRequest(ctx, "error")
		return Reply{}, err
	}

	c.countRequest(ctx, "ok")
	span.SetAttributes(attribute.Int("llm.citation_count", len(reply.Citations)))
	return reply, nil
}

func (c *Client) complete(ctx context.Context, apiKey string, messages []session.Message) (Reply, error) {
	start := time.Now()

	reqBody := PerplexityRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return Reply{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("perplexity API error", "status", resp.StatusCode, "body", string(body))
		return Reply{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var apiResp PerplexityResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return Reply{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	duration := time.Since(start)
	histogram, err := c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(duration.Milliseconds()))
	}

	c.recordMetrics(ctx, apiResp.Usage)

	if len(apiResp.Choices) == 0 {
		return Reply{}, fmt.Errorf("empty response from Perplexity")
	}

	c.logger.Info("perplexity API call completed",
		"duration_ms", duration.Milliseconds(),
		"citations", len(apiResp.Citations))

	return Reply{
		Content:   apiResp.Choices[0].Message.Content,
		Citations: apiResp.Citations,
	}, nil
}

func (c *Client) countRequest(ctx context.Context, outcome string) {
	counter, err := c.meter.Int64Counter(
		"assistant.completion.requests",
		metric.WithDescription("Completion requests by outcome"),
	)
	if err != nil {
		c.logger.Warn("failed to create counter", "error", err)
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// recordMetrics records OpenTelemetry metrics from usage data
func (c *Client) recordMetrics(ctx context.Context, usage map[string]interface{}) {
	if usage == nil {
		return
	}

	for key, value := range usage {
		if intVal, ok := value.(float64); ok {
			counter, err := c.meter.Int64Counter(
				fmt.Sprintf("llm.usage.%s", key),
				metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
			)
			if err != nil {
				c.logger.Warn("failed to create counter", "key", key, "error", err)
				continue
			}
			counter.Add(ctx, int64(intVal))
		}
	}
}
