package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/louisbranch/tresorgate/internal/platform/timeouts"
)

const tracerName = "github.com/louisbranch/tresorgate/internal/services/bridge/adminapi"

// maxResponseBytes bounds how much of a remote response is read.
const maxResponseBytes = 1 << 20

// RemoteError reports a non-2xx answer from the remote authority.
type RemoteError struct {
	Path   string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote call %s: status %d", e.Path, e.Status)
}

// Client performs signed calls against the admin API.
type Client struct {
	// BaseURL is the service URL without a trailing slash.
	BaseURL string
	// APIPath is the signed path prefix, e.g. api/v4/admin.
	APIPath    string
	Signer     *Signer
	HTTPClient *http.Client
	// Timeout bounds a single call. Zero uses timeouts.RemoteCall.
	Timeout time.Duration
}

// APIPath returns the admin path prefix for an SDK version.
func APIPath(sdkVersion string) string {
	return "api/v" + strings.TrimSpace(sdkVersion) + "/admin"
}

// NewClient builds a client for serviceURL using the given SDK version.
func NewClient(serviceURL, sdkVersion string, signer *Signer) (*Client, error) {
	serviceURL = strings.TrimRight(strings.TrimSpace(serviceURL), "/")
	if serviceURL == "" {
		return nil, errors.New("service url is required")
	}
	if strings.TrimSpace(sdkVersion) == "" {
		return nil, errors.New("sdk version is required")
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	return &Client{
		BaseURL:    serviceURL,
		APIPath:    APIPath(sdkVersion),
		Signer:     signer,
		HTTPClient: http.DefaultClient,
	}, nil
}

// Call signs and sends a request for urlPart. A nil body sends a GET; any
// other value is JSON-encoded and POSTed. The decoded JSON answer is
// returned, with an empty answer reported as {}.
func (c *Client) Call(ctx context.Context, urlPart string, body any) (json.RawMessage, error) {
	if c == nil || c.Signer == nil {
		return nil, errors.New("admin client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	path := c.APIPath + urlPart
	verb := Method(payload)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "adminapi.Call")
	defer span.End()
	span.SetAttributes(attribute.String("adminapi.path", urlPart), attribute.String("http.method", verb))

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = timeouts.RemoteCall
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	headers, _, err := c.Signer.Headers(verb, path, payload)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, verb, c.BaseURL+"/"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	headers.Apply(req.Header)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, fmt.Errorf("remote call %s: %w", urlPart, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", urlPart, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remoteErr := &RemoteError{Path: urlPart, Status: resp.StatusCode, Body: string(data)}
		span.SetStatus(codes.Error, remoteErr.Error())
		return nil, remoteErr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("decode response %s: invalid json", urlPart)
	}
	return json.RawMessage(data), nil
}
