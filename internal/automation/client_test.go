package automation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Idan-Levin/slack-shopping-agent/internal/config"
)

func newTestClient(url string, timeout time.Duration) Trigger {
	return NewClient(config.Config{
		Automation: config.Automation{
			URL:     url,
			Secret:  "test-secret",
			Timeout: timeout,
		},
	}, zap.NewNop())
}

func price(v float64) *float64 { return &v }

func testRequest() OrderRequest {
	return OrderRequest{
		Items: []Entry{
			{Title: "Cookies", Quantity: 2, Price: price(3.50), User: "alice"},
		},
		Total:       7.00,
		TriggeredBy: "UADMIN",
		RequestedAt: time.Now().UTC(),
	}
}

func TestPlaceOrderAccepted(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	if err := client.PlaceOrder(context.Background(), testRequest()); err != nil {
		t.Fatalf("accepted response should succeed: %v", err)
	}
	if gotAuth != "Bearer test-secret" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
}

func TestPlaceOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"rejected","reason":"budget exceeded"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	err := client.PlaceOrder(context.Background(), testRequest())
	if !errors.Is(err, ErrNotAccepted) {
		t.Fatalf("expected ErrNotAccepted, got %v", err)
	}
}

func TestPlaceOrderMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	err := client.PlaceOrder(context.Background(), testRequest())
	if !errors.Is(err, ErrNotAccepted) {
		t.Fatalf("expected ErrNotAccepted for malformed body, got %v", err)
	}
}

func TestPlaceOrderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5*time.Second)
	err := client.PlaceOrder(context.Background(), testRequest())
	if !errors.Is(err, ErrNotAccepted) {
		t.Fatalf("expected ErrNotAccepted for 500, got %v", err)
	}
}

func TestPlaceOrderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := newTestClient(srv.URL, 50*time.Millisecond)
	err := client.PlaceOrder(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
