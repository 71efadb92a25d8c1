package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/pkg/utilities"
)

// Auth identifies the member on authenticated calls.
type Auth struct {
	AccessToken string
	MemberID    string
}

func (a Auth) params() map[string]string {
	return map[string]string{"_accessToken": a.AccessToken, "_memberId": a.MemberID}
}

// envelope is the uniform response body of every backend endpoint.
type envelope struct {
	Ret  *flexInt        `json:"ret"`
	Data json.RawMessage `json:"data"`
	Msg  *string         `json:"msg"`
}

// Client talks to the ZipcodeXpress REST API. It never touches credentials
// or cached state; callers pass Auth explicitly.
type Client struct {
	http      *resty.Client
	needLogin string
	logger    *zap.SugaredLogger
}

// New builds a Client. Requests are never retried automatically.
func New(cfg Config, logger *zap.SugaredLogger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.NeedLoginMessage == "" {
		cfg.NeedLoginMessage = "Need login!"
	}
	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("X-FROM", "app").
		SetHeader("Accept", "application/json")
	return &Client{http: hc, needLogin: cfg.NeedLoginMessage, logger: logger}
}

// postForm sends a multipart form mutation.
func (c *Client) postForm(ctx context.Context, path string, form map[string]string, out any) error {
	req := c.http.R().SetMultipartFormData(form)
	return c.execute(ctx, http.MethodPost, path, req, out)
}

// get sends a read with a query string.
func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	req := c.http.R().SetQueryParams(query)
	return c.execute(ctx, http.MethodGet, path, req, out)
}

func (c *Client) execute(ctx context.Context, method, path string, req *resty.Request, out any) error {
	reqID := utilities.NewRequestID()
	start := time.Now()
	resp, err := req.SetContext(ctx).SetHeader("X-Request-Id", reqID).Execute(method, path)
	if err != nil {
		c.logger.Warnw("gateway request failed", "op", path, "request_id", reqID, "err", err)
		return &TransportError{Op: path, Err: err}
	}

	c.logger.Debugw("gateway response",
		"op", path,
		"request_id", reqID,
		"status", resp.StatusCode(),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	if err := dec.Decode(&env); err != nil || env.Ret == nil {
		if err == nil {
			err = ErrMalformedResponse
		} else {
			err = errors.Join(ErrMalformedResponse, err)
		}
		return &TransportError{Op: path, Status: resp.StatusCode(), Err: err}
	}

	if ret := int(*env.Ret); ret != 0 {
		msg := ""
		if env.Msg != nil {
			msg = *env.Msg
		}
		be := &BusinessError{Op: path, Code: ret, Message: msg}
		if c.isNeedLogin(msg) {
			c.logger.Infow("access token rejected", "op", path, "request_id", reqID)
			return &TokenExpiredError{BusinessError: be}
		}
		c.logger.Debugw("business failure", "op", path, "request_id", reqID, "ret", ret, "msg", msg)
		return be
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransportError{Op: path, Status: resp.StatusCode(), Err: errors.Join(ErrMalformedResponse, err)}
	}
	return nil
}

func (c *Client) isNeedLogin(msg string) bool {
	return strings.EqualFold(strings.TrimSpace(msg), c.needLogin)
}

func withAuth(a Auth, extra map[string]string) map[string]string {
	out := a.params()
	for k, v := range extra {
		out[k] = v
	}
	return out
}
