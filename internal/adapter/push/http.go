package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/webitel/im-realtime-service/internal/domain/model"
)

var _ Gateway = (*HTTPGateway)(nil)

type HTTPConfig struct {
	Endpoint string
	APIKey   string
	MaxBatch int
	Timeout  time.Duration
}

// HTTPGateway posts multicast requests as JSON to a provider endpoint.
//
// [WIRE]
//
//	POST {endpoint}
//	{"registration_ids": [...], "priority": "high", "notification": {"title", "body"}, "data": {...}}
//	200 {"results": [{"token": "...", "status": "ok|invalid|unavailable", "error": "..."}]}
type HTTPGateway struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
}

func NewHTTPGateway(cfg HTTPConfig, logger *slog.Logger) *HTTPGateway {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 500
	}
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (g *HTTPGateway) MaxBatch() int { return g.cfg.MaxBatch }

type wireNotification struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

type wireRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Priority        string            `json:"priority"`
	Notification    wireNotification  `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type wireResult struct {
	Token  string `json:"token"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type wireResponse struct {
	Results []wireResult `json:"results"`
}

func (g *HTTPGateway) SendBulk(ctx context.Context, req Request) ([]TokenOutcome, error) {
	if len(req.Tokens) == 0 {
		return nil, nil
	}
	if len(req.Tokens) > g.cfg.MaxBatch {
		return nil, fmt.Errorf("batch of %d exceeds %d: %w", len(req.Tokens), g.cfg.MaxBatch, model.ErrInvalidArgument)
	}

	priority := "normal"
	if req.Priority == model.PriorityHigh {
		priority = "high"
	}
	body, err := json.Marshal(wireRequest{
		RegistrationIDs: req.Tokens,
		Priority:        priority,
		Notification:    wireNotification{Title: req.Title, Body: req.Body},
		Data:            req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "key="+g.cfg.APIKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("push provider: %v: %w", err, model.ErrTransientDelivery)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("push provider status %d: %w", resp.StatusCode, model.ErrTransientDelivery)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("push provider status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode push response: %v: %w", err, model.ErrTransientDelivery)
	}

	return g.outcomes(req.Tokens, decoded.Results), nil
}

// outcomes aligns provider results with the requested tokens. Tokens the
// provider did not mention are treated as transient failures.
func (g *HTTPGateway) outcomes(tokens []string, results []wireResult) []TokenOutcome {
	byToken := make(map[string]wireResult, len(results))
	for _, r := range results {
		byToken[r.Token] = r
	}

	out := make([]TokenOutcome, len(tokens))
	for i, tok := range tokens {
		r, ok := byToken[tok]
		switch {
		case !ok:
			out[i] = TokenOutcome{Token: tok, Status: TransientFailure, Reason: "missing result"}
		case r.Status == "ok":
			out[i] = TokenOutcome{Token: tok, Status: Success}
		case r.Status == "invalid":
			out[i] = TokenOutcome{Token: tok, Status: PermanentInvalid, Reason: r.Error}
		default:
			out[i] = TokenOutcome{Token: tok, Status: TransientFailure, Reason: r.Error}
		}
	}
	return out
}
