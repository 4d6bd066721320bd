package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/flightdeck-social/flightdeck/util"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// CredentialProvider returns the bearer token for a user's platform account.
type CredentialProvider func(ctx context.Context, userID string) (string, error)

// APIClient talks to the content platform's JSON API. All outbound requests
// share one rate limiter so that the daemon as a whole stays under the
// platform's global limits; per-user pacing is the scheduler's job.
type APIClient struct {
	Host        string
	Client      *http.Client
	Credentials CredentialProvider
	UserAgent   string

	limiter *rate.Limiter
}

type APIClientOptions struct {
	// Requests per second across all users. Zero means unlimited.
	RequestsPerSecond int
	Client            *http.Client
}

func NewAPIClient(host string, creds CredentialProvider, opts *APIClientOptions) *APIClient {
	if opts == nil {
		opts = &APIClientOptions{RequestsPerSecond: 2}
	}
	client := opts.Client
	if client == nil {
		client = util.RobustHTTPClient()
		client.Transport = otelhttp.NewTransport(client.Transport)
	}
	limit := rate.Limit(rate.Inf)
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &APIClient{
		Host:        host,
		Client:      client,
		Credentials: creds,
		UserAgent:   fmt.Sprintf("flightdeck/%s", versioninfo.Short()),
		limiter:     rate.NewLimiter(limit, 1),
	}
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *APIClient) do(ctx context.Context, userID, path string, body, out any) error {
	token, err := c.Credentials(ctx, userID)
	if err != nil {
		return &Error{Kind: KindAuth, Message: "no usable credential", Wrapped: err}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.UserAgent)

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return &Error{Kind: KindTransient, Wrapped: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&ae); err != nil {
			// non-JSON error body, classify on status alone
			return &Error{Kind: kindForStatus(resp.StatusCode), StatusCode: resp.StatusCode}
		}
		return &Error{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Code:       ae.Error.Code,
			Message:    ae.Error.Message,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindTransient, Wrapped: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (c *APIClient) SubmitPost(ctx context.Context, userID string, in PostInput) (*PostResult, error) {
	if err := in.Validate(); err != nil {
		return nil, &Error{Kind: KindValidation, Message: err.Error()}
	}
	var out PostResult
	if err := c.do(ctx, userID, "/api/v1/submit", &in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) SubmitComment(ctx context.Context, userID string, in CommentInput) (*CommentResult, error) {
	if err := in.Validate(); err != nil {
		return nil, &Error{Kind: KindValidation, Message: err.Error()}
	}
	var out CommentResult
	if err := c.do(ctx, userID, "/api/v1/comment", &in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Vote(ctx context.Context, userID string, in VoteInput) error {
	if err := in.Validate(); err != nil {
		return &Error{Kind: KindValidation, Message: err.Error()}
	}
	return c.do(ctx, userID, "/api/v1/vote", &in, nil)
}
