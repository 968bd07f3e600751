// Package client implements the outbound HTTP transport: it serializes a
// Prepare, posts it to a peer's endpoint, and decodes the HTTP response back
// into a Fulfill or Reject (§4.5).
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/ilp"
	"github.com/interledger/relay-connector/internal/metrics"
)

const octetStream = "application/octet-stream"

// MaxResponseSize bounds how much of a peer's response body is read before
// the response is rejected as oversized. Sized to the maximum possible
// Fulfill or Reject encoding (§4.5).
const MaxResponseSize = 1 + 8 + 3 + 8 + 1024 + 8 + 8192 + 8 + 32768

// Client sends Prepares to peer endpoints over HTTP and decodes their
// responses. One Client is shared across all outbound requests; its
// *http.Client pools connections.
type Client struct {
	address ilp.Address
	http    *http.Client
	log     *logrus.Entry

	// Metrics is optional; when set, outbound request latency is recorded
	// against it (§6 Metrics).
	Metrics *metrics.Registry
}

// New builds a Client identifying itself as address in reject triggered_by
// fields. A nil httpClient is replaced by a new zero-value http.Client with
// no timeout;
// callers are expected to bound requests via context instead.
func New(address ilp.Address, httpClient *http.Client, log *logrus.Entry) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{address: address, http: httpClient, log: log}
}

// Send posts prepare to uri with the given Authorization header value (empty
// to omit it), retrying once on an HTTP 502 response, and decodes the result
// per §4.5. It satisfies router.OutboundClient.
func (c *Client) Send(ctx context.Context, uri string, auth string, prepare *ilp.Prepare) (*ilp.Fulfill, error) {
	headers := map[string]string{}
	if auth != "" {
		headers["Authorization"] = auth
	}
	return c.SendWithHeaders(ctx, uri, headers, prepare)
}

// SendWithHeaders is the general form of Send, used by the ILDCP bootstrap
// fetch (§4.5, §6) to additionally set ILP-Peer-Name.
func (c *Client) SendWithHeaders(ctx context.Context, uri string, headers map[string]string, prepare *ilp.Prepare) (*ilp.Fulfill, error) {
	body, err := prepare.Encode()
	if err != nil {
		return nil, c.reject(ilp.F00BadRequest, "invalid header value")
	}
	for _, v := range headers {
		if err := validateHeaderValue(v); err != nil {
			return nil, c.reject(ilp.F00BadRequest, "invalid header value")
		}
	}

	start := time.Now()
	resp, err := c.do(ctx, uri, headers, body)
	if err == nil && resp.StatusCode == http.StatusBadGateway {
		resp.Body.Close()
		resp, err = c.do(ctx, uri, headers, body)
	}
	if c.Metrics != nil {
		c.Metrics.OutboundRequestSeconds.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.log.WithFields(logrus.Fields{"uri": uri, "error": err}).Warn("outgoing connection error")
		return nil, c.reject(ilp.T01PeerUnreachable, "peer connection error")
	}
	defer resp.Body.Close()

	return c.decodeResponse(uri, resp)
}

func (c *Client) do(ctx context.Context, uri string, headers map[string]string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", octetStream)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.http.Do(req)
}

func validateHeaderValue(value string) error {
	for i := 0; i < len(value); i++ {
		b := value[i]
		if b < 0x20 || b == 0x7f {
			return fmt.Errorf("illegal byte in header value")
		}
	}
	return nil
}

func (c *Client) decodeResponse(uri string, resp *http.Response) (*ilp.Fulfill, error) {
	status := resp.StatusCode
	switch {
	case status == http.StatusOK:
		return c.decodeBody(uri, resp)
	case status >= 400 && status < 500:
		c.log.WithFields(logrus.Fields{"uri": uri, "status": status}).Warn("remote client error")
		return nil, c.reject(ilp.F00BadRequest, "bad request to peer")
	case status >= 500:
		c.log.WithFields(logrus.Fields{"uri": uri, "status": status}).Warn("remote server error")
		return nil, c.reject(ilp.T01PeerUnreachable, "peer internal error")
	default:
		c.log.WithFields(logrus.Fields{"uri": uri, "status": status}).Warn("unexpected status code")
		return nil, c.reject(ilp.T00InternalError, "unexpected response code from peer")
	}
}

func (c *Client) decodeBody(uri string, resp *http.Response) (*ilp.Fulfill, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, c.reject(ilp.T00InternalError, "invalid response body from peer")
	}
	if len(raw) > MaxResponseSize {
		c.log.WithField("uri", uri).Warn("response body exceeds maximum size")
		return nil, c.reject(ilp.T00InternalError, "invalid response body from peer")
	}

	pkt, err := ilp.Parse(raw)
	if err != nil {
		c.log.WithField("uri", uri).Warn("invalid response body")
		return nil, c.reject(ilp.T00InternalError, "invalid response body from peer")
	}
	switch {
	case pkt.Fulfill != nil:
		return pkt.Fulfill, nil
	case pkt.Reject != nil:
		return nil, pkt.Reject
	default:
		c.log.WithField("uri", uri).Warn("invalid response body")
		return nil, c.reject(ilp.T00InternalError, "invalid response body from peer")
	}
}

func (c *Client) reject(code ilp.ErrorCode, message string) *ilp.Reject {
	return ilp.RejectBuilder{
		Code:        code,
		Message:     []byte(message),
		TriggeredBy: c.address,
	}.Build()
}

// DefaultTimeout is used by the bootstrap ILDCP fetch (§4.5, §6) where no
// per-request context deadline is otherwise supplied.
const DefaultTimeout = 10 * time.Second
