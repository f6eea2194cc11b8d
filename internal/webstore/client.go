package webstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/oshokin/inox-unpack/internal/logger"
)

const (
	// PackageExtension is the suffix of a downloadable extension package.
	PackageExtension = ".crx"

	// installSource is reported to the endpoint as the reason for the download.
	installSource = "ondemand"

	// packageFileMode is used for the downloaded package.
	packageFileMode os.FileMode = 0o644
)

//nolint:gochecknoglobals // Stateless formatter for log output.
var printer = message.NewPrinter(language.English)

// Client talks to the update endpoint.
type Client struct {
	// httpClient performs the requests and follows redirects.
	httpClient *http.Client
	// endpoint is the update service URL.
	endpoint string
	// os is the platform tag sent as the "os" parameter.
	os string
	// productVersion is sent as the "prodversion" parameter.
	productVersion string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds the whole download. Zero keeps the client unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}

		cloned := *c.httpClient
		cloned.Timeout = timeout
		c.httpClient = &cloned
	}
}

// NewClient returns a client for the given endpoint, platform tag and browser version.
func NewClient(endpoint, osTag, productVersion string, opts ...Option) *Client {
	c := &Client{
		httpClient:     http.DefaultClient,
		endpoint:       endpoint,
		os:             osTag,
		productVersion: productVersion,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RequestURL builds the download URL for an extension ID.
func (c *Client) RequestURL(extensionID string) (string, error) {
	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	query := endpoint.Query()
	query.Set("response", "redirect")
	query.Set("os", c.os)
	query.Set("prodversion", c.productVersion)
	query.Set("x", "id="+extensionID+"&installsource="+installSource+"&uc")
	endpoint.RawQuery = query.Encode()

	return endpoint.String(), nil
}

// Download fetches the package for extensionID into destDir and returns the file path.
func (c *Client) Download(ctx context.Context, extensionID, destDir string) (string, error) {
	requestURL, err := c.RequestURL(extensionID)
	if err != nil {
		return "", err
	}

	logger.DebugKV(ctx, "Requesting extension package", "url", requestURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return "", err
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", requestURL, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode >= http.StatusBadRequest {
		return "", newHTTPError(response)
	}

	// The response's request carries the URL after all redirects.
	finalURL := response.Request.URL

	// The name becomes a local file, so separators of any platform are rejected.
	fileName := path.Base(finalURL.Path)
	if !strings.HasSuffix(fileName, PackageExtension) ||
		strings.Contains(fileName, `\`) || !filepath.IsLocal(fileName) {
		return "", fmt.Errorf("something went wrong during GET %s: %w", finalURL, ErrUnexpectedURL)
	}

	outputFileName := filepath.Join(destDir, fileName)

	written, err := writeBody(outputFileName, response.Body)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Downloaded extension package",
		"path", outputFileName,
		"size", printer.Sprintf("%d bytes", written))

	return outputFileName, nil
}

// writeBody streams body into a new file at path.
func writeBody(path string, body io.Reader) (int64, error) {
	outputFile, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, packageFileMode)
	if err != nil {
		return 0, fmt.Errorf("create package file: %w", err)
	}

	written, err := io.Copy(outputFile, body)
	if err != nil {
		_ = outputFile.Close()

		return 0, fmt.Errorf("write package file: %w", err)
	}

	if err = outputFile.Close(); err != nil {
		return 0, fmt.Errorf("close package file: %w", err)
	}

	return written, nil
}
