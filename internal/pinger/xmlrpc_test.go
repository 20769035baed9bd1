package pinger_test

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricirt/ping-queue/internal/domain"
	"github.com/ricirt/ping-queue/internal/pinger"
	"github.com/ricirt/ping-queue/internal/ratelimiter"
)

const okResponse = `<?xml version="1.0"?>
<methodResponse><params><param><value><struct>
<member><name>flerror</name><value><boolean>0</boolean></value></member>
<member><name>message</name><value>Thanks for the ping.</value></member>
</struct></value></param></params></methodResponse>`

const flerrorResponse = `<?xml version="1.0"?>
<methodResponse><params><param><value><struct>
<member><name>flerror</name><value><boolean>1</boolean></value></member>
<member><name>message</name><value><string>Slow down</string></value></member>
</struct></value></param></params></methodResponse>`

const faultResponse = `<?xml version="1.0"?>
<methodResponse><fault><value><struct>
<member><name>faultCode</name><value><int>4</int></value></member>
<member><name>faultString</name><value><string>Too many parameters.</string></value></member>
</struct></value></fault></methodResponse>`

var subject = domain.Subject{Name: "My Blog", URL: "https://blogs.example.com/myblog/"}

func newPinger(timeout time.Duration) *pinger.XMLRPCPinger {
	return pinger.NewXMLRPCPinger(pinger.Config{Timeout: timeout, UserAgent: "ping-queue-test"}, ratelimiter.New(0))
}

func target(url string) domain.PingTarget {
	return domain.PingTarget{ID: "t1", Name: "test", PingURL: url}
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func kindOf(t *testing.T, err error) pinger.FailureKind {
	t.Helper()
	var pe *pinger.Error
	require.True(t, errors.As(err, &pe), "expected *pinger.Error, got %T", err)
	return pe.Kind
}

func TestXMLRPCPinger_Send_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/xml", r.Header.Get("Content-Type"))
		assert.Equal(t, "ping-queue-test", r.Header.Get("User-Agent"))

		var call struct {
			MethodName string   `xml:"methodName"`
			Params     []string `xml:"params>param>value>string"`
		}
		require.NoError(t, xml.NewDecoder(r.Body).Decode(&call))
		assert.Equal(t, "weblogUpdates.ping", call.MethodName)
		assert.Equal(t, []string{"My Blog", "https://blogs.example.com/myblog/"}, call.Params)

		_, _ = io.WriteString(w, okResponse)
	}))
	defer srv.Close()

	res, err := newPinger(time.Second).Send(context.Background(), target(srv.URL), subject)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.False(t, res.FlError)
	assert.Equal(t, "Thanks for the ping.", res.Message)
}

func TestXMLRPCPinger_Send_FlErrorIsStillDelivered(t *testing.T) {
	srv := serve(t, http.StatusOK, flerrorResponse)

	res, err := newPinger(time.Second).Send(context.Background(), target(srv.URL), subject)
	require.NoError(t, err)
	assert.True(t, res.FlError)
	assert.Equal(t, "Slow down", res.Message)
}

func TestXMLRPCPinger_Send_Latin1Response(t *testing.T) {
	body := strings.Replace(okResponse, `<?xml version="1.0"?>`, `<?xml version="1.0" encoding="ISO-8859-1"?>`, 1)
	body = strings.Replace(body, "Thanks for the ping.", "Merci pour le ping \xe9", 1)
	srv := serve(t, http.StatusOK, body)

	res, err := newPinger(time.Second).Send(context.Background(), target(srv.URL), subject)
	require.NoError(t, err)
	assert.False(t, res.FlError)
	assert.Equal(t, "Merci pour le ping \u00e9", res.Message)
}

func TestXMLRPCPinger_Send_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      pinger.FailureKind
		retryable bool
	}{
		{"fault", http.StatusOK, faultResponse, pinger.KindRejected, false},
		{"malformed body", http.StatusOK, "<html>not xml-rpc", pinger.KindProtocol, false},
		{"empty params", http.StatusOK, "<methodResponse></methodResponse>", pinger.KindProtocol, false},
		{"not found", http.StatusNotFound, "", pinger.KindRejected, false},
		{"bad request", http.StatusBadRequest, "", pinger.KindRejected, false},
		{"rate limited", http.StatusTooManyRequests, "", pinger.KindUnavailable, true},
		{"server error", http.StatusInternalServerError, "", pinger.KindUnavailable, true},
		{"bad gateway", http.StatusBadGateway, "", pinger.KindUnavailable, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, tc.status, tc.body)
			p := newPinger(time.Second)

			_, err := p.Send(context.Background(), target(srv.URL), subject)
			require.Error(t, err)
			assert.Equal(t, tc.kind, kindOf(t, err))
			assert.Equal(t, tc.retryable, p.IsRetryable(err))
		})
	}
}

func TestXMLRPCPinger_Send_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	p := newPinger(50 * time.Millisecond)
	_, err := p.Send(context.Background(), target(srv.URL), subject)
	require.Error(t, err)
	assert.Equal(t, pinger.KindTimeout, kindOf(t, err))
	assert.True(t, p.IsRetryable(err))
}

func TestXMLRPCPinger_Send_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := newPinger(time.Second)
	_, err := p.Send(context.Background(), target(url), subject)
	require.Error(t, err)
	assert.Equal(t, pinger.KindNetwork, kindOf(t, err))
	assert.True(t, p.IsRetryable(err))
}

func TestXMLRPCPinger_Send_InvalidTarget(t *testing.T) {
	p := newPinger(time.Second)

	for _, raw := range []string{"", "ftp://rpc.example.com/", "http://", "::bad"} {
		_, err := p.Send(context.Background(), target(raw), subject)
		require.Error(t, err, raw)
		assert.Equal(t, pinger.KindInvalidTarget, kindOf(t, err), raw)
		assert.False(t, p.IsRetryable(err), raw)
	}
}

func TestIsRetryable_ForeignError(t *testing.T) {
	assert.False(t, pinger.IsRetryable(errors.New("boom")))
	assert.False(t, pinger.IsRetryable(nil))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial failed")
	err := &pinger.Error{Kind: pinger.KindNetwork, Target: "http://x", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "network")
}
