package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/retry"
)

const (
	// DefaultTimeout is the default timeout for platform requests
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum accepted response body (32MB)
	MaxResponseSize = 32 * 1024 * 1024

	// UserAgent is sent with every request
	UserAgent = "booking-sync/1.0"

	// acceptHeader is the media type the platform requires for its v2 responses
	acceptHeader = "application/vnd.api.v2+json"

	queryDateLayout = "2006-01-02"
)

// Options configures the HTTP client
type Options struct {
	BaseURL      string
	CompanyID    int64
	PartnerToken string
	UserToken    string
	Timeout      time.Duration
	// Transport is the base round tripper; defaults to http.DefaultTransport
	Transport http.RoundTripper
}

type httpClient struct {
	client    *http.Client
	baseURL   string
	companyID int64
}

// NewHTTPClient creates a platform client. Requests are authorized with the
// platform's combined partner/user bearer token.
func NewHTTPClient(opts Options) (Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("platform base URL is required")
	}
	if opts.CompanyID == 0 {
		return nil, errors.New("platform company id is required")
	}
	if opts.PartnerToken == "" {
		return nil, errors.New("platform partner token is required")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	access := opts.PartnerToken
	if opts.UserToken != "" {
		access += ", User " + opts.UserToken
	}
	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: access, TokenType: "Bearer"}),
		Base:   base,
	}

	return &httpClient{
		client:    &http.Client{Timeout: timeout, Transport: transport},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		companyID: opts.CompanyID,
	}, nil
}

func (c *httpClient) ListStaff(ctx context.Context) ([]booking.Staff, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/company/%d/staff", c.companyID), nil, nil)
	if err != nil {
		return nil, err
	}
	var items []staffDTO
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode staff: %w", err)
	}
	out := make([]booking.Staff, 0, len(items))
	for _, it := range items {
		out = append(out, it.toModel())
	}
	return out, nil
}

func (c *httpClient) ListServices(ctx context.Context) ([]booking.Service, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/company/%d/services", c.companyID), nil, nil)
	if err != nil {
		return nil, err
	}
	var items []serviceDTO
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}
	out := make([]booking.Service, 0, len(items))
	for _, it := range items {
		out = append(out, it.toModel())
	}
	return out, nil
}

func (c *httpClient) ListClients(ctx context.Context, page, count int) ([]booking.Client, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("count", strconv.Itoa(count))
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/clients/%d", c.companyID), q, nil)
	if err != nil {
		return nil, err
	}
	var items []clientDTO
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	out := make([]booking.Client, 0, len(items))
	for _, it := range items {
		out = append(out, it.toModel())
	}
	return out, nil
}

func (c *httpClient) ListRecords(ctx context.Context, query RecordQuery) ([]booking.Record, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(query.Page))
	q.Set("count", strconv.Itoa(query.Count))
	if !query.StartDate.IsZero() {
		q.Set("start_date", query.StartDate.Format(queryDateLayout))
	}
	if !query.EndDate.IsZero() {
		q.Set("end_date", query.EndDate.Format(queryDateLayout))
	}
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/records/%d", c.companyID), q, nil)
	if err != nil {
		return nil, err
	}
	var items []recordDTO
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	out := make([]booking.Record, 0, len(items))
	for _, it := range items {
		out = append(out, it.toModel())
	}
	return out, nil
}

func (c *httpClient) CreateRecord(ctx context.Context, input RecordInput) (booking.Record, error) {
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/records/%d", c.companyID), nil, newRecordPayload(input))
	if err != nil {
		return booking.Record{}, err
	}
	return decodeRecord(data)
}

func (c *httpClient) UpdateRecord(ctx context.Context, id int64, input RecordInput) (booking.Record, error) {
	path := fmt.Sprintf("/record/%d/%d", c.companyID, id)
	data, err := c.do(ctx, http.MethodPut, path, nil, newRecordPayload(input))
	if err != nil {
		return booking.Record{}, err
	}
	return decodeRecord(data)
}

func (c *httpClient) DeleteRecord(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/record/%d/%d", c.companyID, id), nil, nil)
	return err
}

func decodeRecord(data []byte) (booking.Record, error) {
	var dto recordDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return booking.Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return dto.toModel(), nil
}

// do performs one request and returns the raw "data" member of the
// platform's {success, data, meta} envelope. Throttling responses are
// returned as retry.RateLimited errors, everything else as transient.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", acceptHeader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.Transient(fmt.Errorf("failed to execute request: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(raw)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds maximum allowed size of %d bytes", MaxResponseSize)
	}

	message := gjson.GetBytes(raw, "meta.message").String()
	if message == "" {
		message = resp.Status
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retry.RateLimited(NewHTTPError(resp.StatusCode, u, message))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, retry.Transient(NewHTTPError(resp.StatusCode, u, message))
	}

	if method == http.MethodDelete && len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	envelope := gjson.ParseBytes(raw)
	if success := envelope.Get("success"); success.Exists() && !success.Bool() {
		return nil, retry.Transient(NewHTTPError(resp.StatusCode, u, message))
	}
	data := envelope.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return []byte("null"), nil
	}
	return []byte(data.Raw), nil
}
