// Package stability calls the Stability AI stable-image inpainting API to
// dress an uploaded dog photo in branded apparel. The client performs exactly
// one attempt per call: retry policy belongs to callers, and none exists in
// this system.
package stability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("stability: api key is required")

const (
	defaultBaseURL = "https://api.stability.ai"
	inpaintPath    = "/v2beta/stable-image/edit/inpaint"

	// DefaultTimeout bounds a single inpainting call.
	DefaultTimeout = 30 * time.Second
)

// Options configures the Stability client.
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client performs HTTP calls to the Stability inpainting endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

// InpaintRequest carries the inputs of a single inpainting call. Mask is a
// PNG whose white pixels are eligible for modification.
type InpaintRequest struct {
	Image  []byte
	Mask   []byte
	Prompt string
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Inpaint submits image + mask + prompt and returns the generated PNG bytes.
// The configured timeout is enforced per call. Failures are classified as
// *domain.UpstreamError: 4xx as RemoteRejected, 5xx as RemoteError, deadline
// as Timeout, and a non-image body as InvalidResponse.
func (c *Client) Inpaint(ctx context.Context, req InpaintRequest) ([]byte, error) {
	if !c.HasCredentials() {
		return nil, &domain.UpstreamError{Kind: domain.UpstreamRemoteRejected, Err: ErrMissingAPIKey}
	}
	if len(req.Image) == 0 {
		return nil, &domain.UpstreamError{Kind: domain.UpstreamRemoteRejected, Err: errors.New("stability: image is required")}
	}

	body, contentType, err := encodeForm(req)
	if err != nil {
		return nil, &domain.UpstreamError{Kind: domain.UpstreamInvalidResponse, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+inpaintPath, body)
	if err != nil {
		return nil, &domain.UpstreamError{Kind: domain.UpstreamRemoteError, Err: fmt.Errorf("stability: build request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &domain.UpstreamError{Kind: domain.UpstreamTimeout, Err: fmt.Errorf("stability: call timed out after %s", c.timeout)}
		}
		return nil, &domain.UpstreamError{Kind: domain.UpstreamRemoteError, Err: fmt.Errorf("stability: http request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &domain.UpstreamError{Kind: domain.UpstreamTimeout, Err: fmt.Errorf("stability: read timed out after %s", c.timeout)}
		}
		return nil, &domain.UpstreamError{Kind: domain.UpstreamRemoteError, Err: fmt.Errorf("stability: read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(raw))
		if len(detail) > 512 {
			detail = detail[:512]
		}
		kind := domain.UpstreamRemoteError
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = domain.UpstreamRemoteRejected
		}
		return nil, &domain.UpstreamError{Kind: kind, Err: fmt.Errorf("stability: status %d: %s", resp.StatusCode, detail)}
	}

	if len(raw) == 0 {
		return nil, &domain.UpstreamError{Kind: domain.UpstreamInvalidResponse, Err: errors.New("stability: empty response body")}
	}
	if _, _, err := image.Decode(bytes.NewReader(raw)); err != nil {
		return nil, &domain.UpstreamError{Kind: domain.UpstreamInvalidResponse, Err: fmt.Errorf("stability: response is not an image: %w", err)}
	}

	c.logger.Debug().
		Int("image_bytes", len(raw)).
		Dur("duration", time.Since(start)).
		Msg("stability: inpainting completed")
	return raw, nil
}

func encodeForm(req InpaintRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	imagePart, err := writer.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, "", fmt.Errorf("stability: encode image part: %w", err)
	}
	if _, err := imagePart.Write(req.Image); err != nil {
		return nil, "", fmt.Errorf("stability: encode image part: %w", err)
	}

	if len(req.Mask) > 0 {
		maskPart, err := writer.CreateFormFile("mask", "mask.png")
		if err != nil {
			return nil, "", fmt.Errorf("stability: encode mask part: %w", err)
		}
		if _, err := maskPart.Write(req.Mask); err != nil {
			return nil, "", fmt.Errorf("stability: encode mask part: %w", err)
		}
	}

	if err := writer.WriteField("prompt", req.Prompt); err != nil {
		return nil, "", fmt.Errorf("stability: encode prompt: %w", err)
	}
	if err := writer.WriteField("output_format", "png"); err != nil {
		return nil, "", fmt.Errorf("stability: encode output_format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("stability: finalize form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
