package pinger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kolo/xmlrpc"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/ratelimiter"
)

var errFault = errors.New("xml-rpc fault")

const (
	pingMethod      = "weblogUpdates.ping"
	maxResponseSize = 1 << 20
)

// Config configures the XML-RPC pinger.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// XMLRPCPinger sends weblogUpdates.ping calls over HTTP.
type XMLRPCPinger struct {
	httpClient *http.Client
	userAgent  string
	limiter    *ratelimiter.TargetLimiters
}

// NewXMLRPCPinger builds a pinger. limiter may be nil to disable pacing.
func NewXMLRPCPinger(cfg Config, limiter *ratelimiter.TargetLimiters) *XMLRPCPinger {
	return &XMLRPCPinger{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		limiter:    limiter,
	}
}

// Send pings target about subject. Every non-nil error is an *Error.
func (p *XMLRPCPinger) Send(ctx context.Context, target domain.PingTarget, subject domain.Subject) (*Result, error) {
	if err := validatePingURL(target.PingURL); err != nil {
		return nil, &Error{Kind: KindInvalidTarget, Target: target.PingURL, Err: err}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, target.ID); err != nil {
			return nil, &Error{Kind: KindTimeout, Target: target.PingURL, Err: fmt.Errorf("wait for rate limiter: %w", err)}
		}
	}

	body, err := xmlrpc.EncodeMethodCall(pingMethod, subject.Name, subject.URL)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Target: target.PingURL, Err: fmt.Errorf("encode call: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.PingURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindInvalidTarget, Target: target.PingURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "text/xml")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: classifyTransportError(err), Target: target.PingURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{Kind: classifyTransportError(err), Target: target.PingURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := KindRejected
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = KindUnavailable
		}
		return nil, &Error{Kind: kind, Target: target.PingURL, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	result, err := decodeResponse(raw)
	if err != nil {
		kind := KindProtocol
		if errors.Is(err, errFault) {
			kind = KindRejected
		}
		return nil, &Error{Kind: kind, Target: target.PingURL, StatusCode: resp.StatusCode, Err: err}
	}
	result.StatusCode = resp.StatusCode
	return result, nil
}

// IsRetryable implements worker.Transport.
func (p *XMLRPCPinger) IsRetryable(err error) bool {
	return IsRetryable(err)
}

func validatePingURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse ping url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("ping url has no host")
	}
	return nil
}

func classifyTransportError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// ---- XML-RPC wire format ----

func init() {
	xmlrpc.CharsetReader = charsetReader
}

// charsetReader converts IANA-labelled response bodies (ISO-8859-1 is a
// common server default) to UTF-8 for the XML decoder.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q is not supported", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// pingReply is the struct weblogUpdates.ping answers with.
type pingReply struct {
	FlError bool   `xmlrpc:"flerror"`
	Message string `xmlrpc:"message"`
}

// decodeResponse returns errFault for an XML-RPC fault and a plain error
// for anything that is not a methodResponse with a value.
func decodeResponse(raw []byte) (*Result, error) {
	resp := xmlrpc.Response(raw)
	if err := resp.Err(); err != nil {
		var fault xmlrpc.FaultError
		if errors.As(err, &fault) {
			return nil, fmt.Errorf("%w %d: %s", errFault, fault.Code, fault.String)
		}
		return nil, fmt.Errorf("decode fault: %w", err)
	}

	var reply pingReply
	if err := resp.Unmarshal(&reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &Result{FlError: reply.FlError, Message: reply.Message}, nil
}
