package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/certifi/gocertifi"
)

const (
	connectTimeout = 10 * time.Second
	requestTimeout = 60 * time.Second
)

func userAgent() string {
	return "fbclient-go-" + Version
}

func defaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}
}

// makeRequest POSTs body to rawURL and returns the response body whatever
// the status code; the API reports errors in the body. The transient access
// token is reset once the transport completes. A failure caused by an
// unknown certificate authority is retried exactly once against the
// fallback roots.
func (c *Client) makeRequest(
	ctx context.Context,
	rawURL string,
	contentType string,
	body []byte,
) (
	[]byte,
	error,
) {
	c.logger.Debug("api request", "url", rawURL, "bytes", len(body))

	respBody, err := c.post(ctx, c.httpClient, rawURL, contentType, body)
	c.accessToken = ""

	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		c.logger.Warn("invalid or no certificate authority found, using bundled roots", "url", rawURL)

		fallback, ferr := c.fallbackClient()
		if ferr != nil {
			return nil, newTransportError(rawURL, ferr)
		}
		respBody, err = c.post(ctx, fallback, rawURL, contentType, body)
	}

	if err != nil {
		return nil, newTransportError(rawURL, err)
	}
	return respBody, nil
}

func (c *Client) post(
	ctx context.Context,
	httpClient *http.Client,
	rawURL string,
	contentType string,
	body []byte,
) (
	[]byte,
	error,
) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent())
	req.Header.Del("Expect")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return respBody, nil
}

// fallbackClient copies the configured client with certificate
// verification against the fallback roots.
func (c *Client) fallbackClient() (*http.Client, error) {
	pool := c.rootCAs
	if pool == nil {
		certs, err := gocertifi.CACerts()
		if err != nil {
			return nil, fmt.Errorf("failed to load bundled roots: %w", err)
		}
		pool = certs
	}

	transport, ok := c.httpClient.Transport.(*http.Transport)
	if ok {
		transport = transport.Clone()
	} else {
		transport = defaultHTTPClient().Transport.(*http.Transport)
	}
	tlsConfig := &tls.Config{}
	if transport.TLSClientConfig != nil {
		tlsConfig = transport.TLSClientConfig.Clone()
	}
	tlsConfig.RootCAs = pool
	tlsConfig.InsecureSkipVerify = false
	transport.TLSClientConfig = tlsConfig

	fallback := *c.httpClient
	fallback.Transport = transport
	return &fallback, nil
}
