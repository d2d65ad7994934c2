// Package cse is a client for the JSON endpoints behind www.cse.lk.
package cse

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://www.cse.lk/api"

// Record is one loosely typed object from the API.
type Record map[string]any

// String renders the value under key, or "" when absent. Whole floats are
// printed without exponent or decimals.
func (r Record) String(key string) string {
	return formatValue(r[key])
}

// Float reads a numeric value that may arrive as a number or a string.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

type Client struct {
	client *resty.Client
	logger *zap.Logger
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.client.SetBaseURL(url) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(opts ...Option) *Client {
	client := resty.New().
		SetBaseURL(DefaultBaseURL).
		SetTimeout(30*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "BrokerGo/1.0")

	c := &Client{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post sends form to /<endpoint> and decodes the JSON body into out.
func (c *Client) post(ctx context.Context, endpoint string, form map[string]string, out any) error {
	req := c.client.R().SetContext(ctx)
	if len(form) > 0 {
		req.SetFormData(form)
	} else {
		req.SetHeader("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := req.Post("/" + endpoint)
	if err != nil {
		return fmt.Errorf("cse %s: %w", endpoint, err)
	}
	if resp.IsError() {
		return fmt.Errorf("cse %s: status %d", endpoint, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("cse %s: decode response: %w", endpoint, err)
	}
	c.logger.Debug("cse api call", zap.String("endpoint", endpoint), zap.Duration("took", resp.Time()))
	return nil
}
