package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"marketpulse-dash/internal/domain"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

const loginPath = "/login"

// IntradayPath builds the market endpoint path for one poll.
func IntradayPath(cfg domain.PollConfig) string {
	return fmt.Sprintf("/market/intraday/%s?tail=1&rsi_low=%s&rsi_high=%s",
		url.PathEscape(cfg.Symbol),
		strconv.FormatFloat(cfg.RSILow, 'f', -1, 64),
		strconv.FormatFloat(cfg.RSIHigh, 'f', -1, 64),
	)
}

// FetchIntraday polls the market endpoint. A body that is not a snapshot
// yields a *DecodeError with a nil snapshot; callers treat it as no data.
func (c *Client) FetchIntraday(ctx context.Context, cfg domain.PollConfig) (*domain.Snapshot, error) {
	ctx, span := c.tracer.Start(ctx, "market-client.fetch-intraday")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", cfg.Symbol))

	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: IntradayPath(cfg)})
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		if resp.DecodeErr != nil {
			return nil, resp.DecodeErr
		}
		return nil, &DecodeError{Err: fmt.Errorf("empty body")}
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(resp.Data, &snap); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if snap.Symbol == "" {
		snap.Symbol = cfg.Symbol
	}
	snap.Thresholds = cfg.Thresholds()
	span.SetAttributes(attribute.Int("candles", len(snap.Candles)))
	return &snap, nil
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login posts the credentials without an Authorization header. Only a
// string "token" field is required; other fields are read leniently and a
// body without a token returns an empty LoginResponse, not an error.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	resp, err := c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      loginPath,
		Body:      LoginRequest{Username: username, Password: password},
		Anonymous: true,
	})
	if err != nil {
		return nil, err
	}

	out := &LoginResponse{}
	if resp.Data == nil {
		return out, nil
	}
	if token := gjson.GetBytes(resp.Data, "token"); token.Type == gjson.String {
		out.Token = token.String()
	}
	// user_id may arrive as a string or a number
	if id := gjson.GetBytes(resp.Data, "user_id"); id.Type == gjson.String || id.Type == gjson.Number {
		out.UserID = id.String()
	}
	return out, nil
}
