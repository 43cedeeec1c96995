// Package httptransport carries quotation documents between the local client
// and the authoritative server as JSON over HTTP.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	syncErrors "github.com/c0deZ3R0/go-quote-sync/errors"
	"github.com/c0deZ3R0/go-quote-sync/logging"
	"github.com/c0deZ3R0/go-quote-sync/quotesync"
)

// Limits defines response size limits for the HTTP client.
type Limits struct {
	MaxBodyBytes int64 // Maximum response body size in bytes
}

// Client is the HTTP client side of the transport. It implements
// quotesync.DocumentFetcher so the reconciliation engine can use it directly.
type Client struct {
	baseURL string
	http    *http.Client
	limits  Limits
	logger  *logging.Logger
}

var _ quotesync.DocumentFetcher = (*Client)(nil)

// ClientOption configures a Client using the functional options pattern
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(cl *http.Client) ClientOption {
	return func(c *Client) {
		c.http = cl
	}
}

// WithClientLimits sets the response size limits
func WithClientLimits(l Limits) ClientOption {
	return func(c *Client) {
		c.limits = l
	}
}

// NewClient creates a transport client for the given base URL. Requests get a
// 30 second timeout by default so a reconciliation pass cannot hang forever on
// a half-open connection.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limits: Limits{
			MaxBodyBytes: 8 << 20, // 8MB
		},
		logger: logging.WithComponent(logging.Component("httptransport")),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the base URL for the client
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchDocument retrieves the server's authoritative copy of a document.
func (c *Client) FetchDocument(ctx context.Context, id string) (*quotesync.QuotationDocument, error) {
	if id == "" {
		return nil, syncErrors.NewValidationError(syncErrors.OpFetch, fmt.Errorf("document id is required"))
	}

	var jd JSONDocument
	if err := c.getJSON(ctx, syncErrors.OpFetch, "/documents/"+url.PathEscape(id), &jd); err != nil {
		return nil, err
	}
	return fromJSONDocument(jd), nil
}

// ListLineage retrieves all versions of a lineage, most recent first.
func (c *Client) ListLineage(ctx context.Context, baseNumber string) ([]*quotesync.QuotationDocument, error) {
	if baseNumber == "" {
		return nil, syncErrors.NewValidationError(syncErrors.OpListLineage, fmt.Errorf("base number is required"))
	}

	var wire []JSONDocument
	if err := c.getJSON(ctx, syncErrors.OpListLineage, "/lineages/"+url.PathEscape(baseNumber), &wire); err != nil {
		return nil, err
	}

	docs := make([]*quotesync.QuotationDocument, len(wire))
	for i, jd := range wire {
		docs[i] = fromJSONDocument(jd)
	}
	return docs, nil
}

// Rollback asks the server to abandon an in-progress version and re-activate
// the previous one. It returns the number of snapshots the server deleted.
func (c *Client) Rollback(ctx context.Context, reqBody RollbackRequest) (int, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, syncErrors.WrapOpComponent(err, syncErrors.OpRollback, "transport")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rollback", bytes.NewReader(payload))
	if err != nil {
		return 0, syncErrors.WrapOpComponent(err, syncErrors.OpRollback, "transport")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("rollback request failed",
			slog.String("error", err.Error()),
			slog.String("url", c.baseURL+"/rollback"))
		return 0, syncErrors.NewNetworkError(syncErrors.OpRollback, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.statusError(syncErrors.OpRollback, resp)
	}

	var result RollbackResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.limits.MaxBodyBytes)).Decode(&result); err != nil {
		return 0, syncErrors.WrapOpComponent(fmt.Errorf("failed to decode response: %w", err), syncErrors.OpRollback, "transport")
	}
	if !result.Success {
		return 0, syncErrors.New(syncErrors.OpRollback, fmt.Errorf("server reported failure"))
	}
	return result.SnapshotsEliminados, nil
}

func (c *Client) getJSON(ctx context.Context, op syncErrors.Operation, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return syncErrors.WrapOpComponent(err, op, "transport")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("url", c.baseURL+path))
		return syncErrors.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(op, resp)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, c.limits.MaxBodyBytes)).Decode(out); err != nil {
		return syncErrors.WrapOpComponent(fmt.Errorf("failed to decode response: %w", err), op, "transport")
	}
	return nil
}

// statusError maps a non-200 response onto the error taxonomy. The body is
// read so the wrapped error carries the server's message.
func (c *Client) statusError(op syncErrors.Operation, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, c.limits.MaxBodyBytes))

	var wire ErrorResponse
	message := string(body)
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		message = wire.Error
		if wire.Details != "" {
			message += ": " + wire.Details
		}
	}

	err := fmt.Errorf("server error (status %d): %s", resp.StatusCode, message)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return syncErrors.NewNotFoundError(op, err)
	case http.StatusBadRequest:
		return syncErrors.NewValidationError(op, err)
	default:
		return syncErrors.NewWithComponent(op, "transport", err)
	}
}
