// Package capability implements the opaque LLM/Downloader/Transcriber/Cutter
// clients behind internal/pipeline's accept interfaces: every external call
// the stages make goes through one of these, each wrapped in the same
// retry/circuit-breaker discipline the teacher applies to its own outbound
// HTTP clients (clients/callback_client.go's retryablehttp.NewClient with a
// bounded RetryMax/RetryWaitMin/RetryWaitMax).
package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/log"
	"github.com/clipforge/highlighter/internal/metrics"
	"github.com/clipforge/highlighter/internal/pipeline"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"github.com/xeipuuv/gojsonschema"
)

// LLMClient calls a single opaque chat-completion-shaped endpoint, asking
// for JSON matching a fixed per-operation schema and repairing the response
// once if it fails validation (§4.4 "the LLM capability is opaque, but
// responses are validated/repaired against a schema before use").
type LLMClient struct {
	endpoint string
	apiKey   string
	provider string

	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewLLMClient builds an LLMClient with a 3-attempt exponential backoff
// retry policy and a circuit breaker that opens after 5 consecutive
// failures, mirroring jordigilh-kubernaut's use of gobreaker around
// flaky upstream calls.
func NewLLMClient(endpoint, apiKey, provider string) *LLMClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 10 * time.Second
	client.Logger = nil

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm_client",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &LLMClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		provider: provider,
		http:     client.StandardClient(),
		breaker:  breaker,
	}
}

// llmSchemas maps each operation to the JSON schema its response must
// satisfy, §4.4's per-call-site contract.
var llmSchemas = map[pipeline.LLMOperation]string{
	pipeline.LLMOutline: `{
		"type": "array",
		"items": {"type": "object", "required": ["topic", "summary"], "properties": {
			"topic": {"type": "string"}, "summary": {"type": "string"}}}}`,
	pipeline.LLMTimeline: `{
		"type": "array",
		"items": {"type": "object", "required": ["topic", "chunk_index", "start_time", "end_time"]}}`,
	pipeline.LLMScoring: `{
		"type": "object",
		"required": ["score", "reasons"],
		"properties": {"score": {"type": "number"}, "reasons": {"type": "string"}}}`,
	pipeline.LLMTitle: `{"type": "string"}`,
	pipeline.LLMClustering: `{
		"type": "array",
		"items": {"type": "object", "required": ["title", "interval_indexes"]}}`,
}

// Call implements pipeline.LLMClient.
func (c *LLMClient) Call(ctx context.Context, op pipeline.LLMOperation, input interface{}, out interface{}) error {
	body, err := c.callWithRetry(ctx, op, input)
	if err != nil {
		metrics.Metrics.LLMClient.FailureCount.WithLabelValues(string(op), string(errkind.KindOf(err))).Inc()
		return err
	}

	if schema, ok := llmSchemas[op]; ok {
		if verr := validateSchema(schema, body); verr != nil {
			log.NoID("llm response failed schema validation, attempting repair", "operation", string(op), "err", verr.Error())
			repaired, rerr := c.callWithRetry(ctx, op, map[string]interface{}{"repair_of": string(body), "validation_error": verr.Error()})
			if rerr != nil {
				return errkind.New(errkind.Unrecoverable, "llm response failed schema validation and repair call failed", rerr)
			}
			if verr2 := validateSchema(schema, repaired); verr2 != nil {
				return errkind.New(errkind.Unrecoverable, "llm response still fails schema validation after repair", verr2)
			}
			body = repaired
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errkind.New(errkind.Unrecoverable, "decoding llm response into "+fmt.Sprintf("%T", out), err)
	}
	return nil
}

func (c *LLMClient) callWithRetry(ctx context.Context, op pipeline.LLMOperation, input interface{}) ([]byte, error) {
	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return backoff.RetryWithData(func() ([]byte, error) {
			return c.doCall(ctx, op, input)
		}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx))
	})
	metrics.Metrics.LLMClient.RequestDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, errkind.New(errkind.Transient, "llm circuit breaker open", err)
		}
		// doCall already tags permanent failures (4xx other than 429) as
		// errkind.Unrecoverable via backoff.Permanent; backoff unwraps that
		// back to the plain error on the way out, so preserve its kind
		// instead of flattening everything to Transient (§4.4.2/§7: 4xx
		// other than 429 is fatal for the stage, not retried).
		if errkind.Is(err, errkind.Unrecoverable) {
			return nil, err
		}
		return nil, errkind.New(errkind.Transient, "llm call failed after retries", err)
	}
	return result.([]byte), nil
}

func (c *LLMClient) doCall(ctx context.Context, op pipeline.LLMOperation, input interface{}) ([]byte, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"provider":  c.provider,
		"operation": string(op),
		"input":     input,
	})
	if err != nil {
		return nil, errkind.New(errkind.Internal, "encoding llm request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errkind.New(errkind.Internal, "building llm request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		callErr := fmt.Errorf("llm endpoint returned status %d: %s", resp.StatusCode, buf.String())
		// 429 is retried like any transient failure; any other 4xx is a
		// permanent failure for the stage (§4.4.2/§7) and must not be
		// retried, so it is wrapped in backoff.Permanent here, not just
		// tagged, since cenkalti/backoff only stops early on that type.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(errkind.New(errkind.Unrecoverable, callErr.Error(), nil))
		}
		return nil, callErr
	}
	return buf.Bytes(), nil
}

func validateSchema(schema string, body []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(body))
	if err != nil {
		return err
	}
	if !result.Valid() {
		return fmt.Errorf("%d schema validation errors, first: %s", len(result.Errors()), result.Errors()[0])
	}
	return nil
}
