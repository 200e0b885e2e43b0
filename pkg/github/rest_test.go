package github

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestRESTClient(t *testing.T, srv *httptest.Server) Gateway {
	t.Helper()
	c := &RESTClient{
		apiURL:      srv.URL,
		httpc:       srv.Client(),
		logger:      log.New(io.Discard),
		tokens:      expirable.NewLRU[int64, string](8, nil, time.Minute),
		memberships: expirable.NewLRU[string, MembershipStatus](8, nil, time.Minute),
	}
	// Pre-seeded token keeps the app auth flow out of the test.
	c.tokens.Add(7, "test-token")
	return c.Installation(7)
}

func gatewayErrorTotal(t *testing.T) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, mf := range mfs {
		if mf.GetName() != "cla_bot_github_gateway_errors_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestUpstreamErrorsAreCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`)) // nolint: errcheck
	}))
	defer srv.Close()

	gw := newTestRESTClient(t, srv)
	before := gatewayErrorTotal(t)

	_, err := gw.GetUser(context.TODO(), "alice")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", ue.StatusCode)
	}

	if got := gatewayErrorTotal(t); got != before+1 {
		t.Errorf("expected gateway error count %v, got %v", before+1, got)
	}
}

func TestNotFoundIsNotCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	gw := newTestRESTClient(t, srv)
	before := gatewayErrorTotal(t)

	_, err := gw.GetUser(context.TODO(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if got := gatewayErrorTotal(t); got != before {
		t.Errorf("expected gateway error count unchanged at %v, got %v", before, got)
	}
}
