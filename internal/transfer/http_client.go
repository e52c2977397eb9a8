package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"
)

// HTTPClient talks to the external transfer provider. The provider is
// untrusted and possibly slow: every call is bounded by the configured
// timeout, and a timeout is reported as KindTimeout, never as success.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) Transfer(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, &Error{Kind: KindRejected, Detail: err.Error()}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return Result{}, &Error{Kind: KindUnavailable, Detail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if isTimeoutErr(err) {
			return Result{}, &Error{Kind: KindTimeout, Detail: err.Error()}
		}
		return Result{}, &Error{Kind: KindUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var result Result
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return Result{}, &Error{Kind: KindUnavailable, Detail: "malformed provider response"}
		}
		return result, nil
	}

	var provErr errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&provErr)
	return Result{}, &Error{Kind: classify(resp.StatusCode, provErr.Code), Detail: provErr.Message}
}

func classify(statusCode int, errorCode string) ErrorKind {
	switch errorCode {
	case "payee_not_found", "recipient_not_found":
		return KindPayeeNotFound
	case "verification_pending", "kyc_pending":
		return KindVerificationPending
	}
	switch {
	case statusCode == http.StatusNotFound || statusCode == http.StatusUnprocessableEntity:
		return KindPayeeNotFound
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= 500:
		return KindUnavailable
	}
	return KindRejected
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
