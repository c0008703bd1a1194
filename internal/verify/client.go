package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// RemotePerson is one payload entry returned by the roll search service.
type RemotePerson struct {
	ApplicantFullName string `json:"applicantFullName"`
	Age               int    `json:"age"`
	EpicNumber        string `json:"epicNumber"`
}

// SerialQuery identifies one elector row in the remote roll.
type SerialQuery struct {
	StateCode  string
	ACNumber   int
	PartNumber int
	SerialNo   string
}

// LookupResult carries the decoded payload entries plus the raw payload JSON
// for audit storage.
type LookupResult struct {
	Persons []RemotePerson
	Raw     json.RawMessage
}

// RemoteLookup queries the electoral roll search service. An empty Persons
// slice with a nil error means the serial has no remote entry.
type RemoteLookup interface {
	LookupSerial(ctx context.Context, q SerialQuery) (LookupResult, error)
	// PartCount reports how many serials the remote roll holds for a part,
	// used for count reconciliation.
	PartCount(ctx context.Context, acNumber, partNumber int) (int, error)
}

// ClientConfig configures the HTTP lookup client. StateCode is used for
// part-level queries, which carry no per-record state.
type ClientConfig struct {
	BaseURL    string
	StateCode  string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
}

// Client is the HTTP implementation of RemoteLookup.
type Client struct {
	baseURL    string
	stateCode  string
	headers    map[string]string
	maxRetries int
	httpClient *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		stateCode:  cfg.StateCode,
		headers:    cfg.Headers,
		maxRetries: retries,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type lookupRequest struct {
	OldStateCd      string `json:"oldStateCd"`
	OldAcNo         string `json:"oldAcNo"`
	OldPartNo       string `json:"oldPartNo"`
	OldPartSerialNo string `json:"oldPartSerialNo,omitempty"`
}

type lookupEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload"`
}

func (c *Client) LookupSerial(ctx context.Context, q SerialQuery) (LookupResult, error) {
	body := lookupRequest{
		OldStateCd:      q.StateCode,
		OldAcNo:         strconv.Itoa(q.ACNumber),
		OldPartNo:       strconv.Itoa(q.PartNumber),
		OldPartSerialNo: q.SerialNo,
	}
	return c.post(ctx, body)
}

func (c *Client) PartCount(ctx context.Context, acNumber, partNumber int) (int, error) {
	body := lookupRequest{
		OldStateCd: c.stateCode,
		OldAcNo:    strconv.Itoa(acNumber),
		OldPartNo:  strconv.Itoa(partNumber),
	}
	result, err := c.post(ctx, body)
	if err != nil {
		return 0, err
	}
	return len(result.Persons), nil
}

// post issues the lookup with bounded retries on retryable failures.
func (c *Client) post(ctx context.Context, body lookupRequest) (LookupResult, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return LookupResult{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		result, err := c.postOnce(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return LookupResult{}, err
		}
	}
	return LookupResult{}, lastErr
}

func (c *Client) postOnce(ctx context.Context, body lookupRequest) (LookupResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return LookupResult{}, NewLookupError(ErrorInternal, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return LookupResult{}, NewLookupError(ErrorInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return LookupResult{}, NewLookupError(ErrorTimeout, "request timed out", err)
		}
		return LookupResult{}, NewLookupError(ErrorOutage, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return LookupResult{}, NewLookupError(ErrorRateLimited, "rate limited", nil)
	case resp.StatusCode >= 500:
		return LookupResult{}, NewLookupError(ErrorOutage, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return LookupResult{}, NewLookupError(ErrorBadData, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return LookupResult{}, NewLookupError(ErrorOutage, "read response", err)
	}

	var envelope lookupEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return LookupResult{}, NewLookupError(ErrorBadData, "decode envelope", err)
	}
	if envelope.Status != "Success" {
		return LookupResult{}, NewLookupError(ErrorOutage, fmt.Sprintf("remote status %q: %s", envelope.Status, envelope.Message), nil)
	}

	result := LookupResult{Raw: envelope.Payload}
	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, &result.Persons); err != nil {
			return LookupResult{}, NewLookupError(ErrorBadData, "decode payload", err)
		}
	}
	return result, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
