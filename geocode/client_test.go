package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"melhor-casa/models"
	"melhor-casa/services"
	"melhor-casa/utils"
)

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" || r.URL.Query().Get("limit") != "1" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			http.Error(w, "missing user agent", http.StatusForbidden)
			return
		}
		q := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(q, "Savassi"):
			fmt.Fprint(w, `[{"lat":"-19.9386","lon":"-43.9346","display_name":"Savassi, Belo Horizonte"}]`)
		case strings.HasPrefix(q, "Rua Pernambuco Funcionários"):
			fmt.Fprint(w, `[{"lat":"-19.9330","lon":"-43.9290","display_name":"Funcionários"}]`)
		case strings.HasPrefix(q, "broken"):
			http.Error(w, "oops", http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Options{
		BaseURL:    srv.URL,
		UserAgent:  "test-agent",
		RatePerSec: 1000,
		HTTPClient: srv.Client(),
	}, utils.NopLogger())
}

func TestLocate(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()
	c := newTestClient(srv)

	r, err := c.Locate(context.Background(), "Savassi")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if r.Latitude != -19.9386 || r.Longitude != -43.9346 || r.DisplayName == "" {
		t.Errorf("result: %+v", r)
	}
}

func TestLocateErrors(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()
	c := newTestClient(srv)

	if _, err := c.Locate(context.Background(), "Lugar Nenhum"); !errors.Is(err, ErrNoResult) {
		t.Errorf("unknown address: got %v, want ErrNoResult", err)
	}
	if _, err := c.Locate(context.Background(), "  "); !errors.Is(err, ErrNoResult) {
		t.Errorf("empty address: got %v, want ErrNoResult", err)
	}
	before := atomic.LoadInt32(&hits)
	if _, err := c.Locate(context.Background(), "broken"); err == nil || errors.Is(err, ErrNoResult) {
		t.Errorf("server error: got %v", err)
	}
	if atomic.LoadInt32(&hits)-before != 1 {
		t.Error("Locate must make exactly one attempt")
	}
}

func TestLocateHonoursContext(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()
	c := newTestClient(srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Locate(ctx, "Savassi"); err == nil {
		t.Error("cancelled context should fail")
	}
}

func TestLocateUser(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()
	c := newTestClient(srv)

	loc, err := c.LocateUser(context.Background(), "Savassi")
	if err != nil {
		t.Fatalf("LocateUser: %v", err)
	}
	if loc.Address != "Savassi" || loc.Latitude != -19.9386 {
		t.Errorf("location: %+v", loc)
	}
}

func TestLocateAll(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()
	c := newTestClient(srv)

	lat, lon := -1.0, -2.0
	props := []models.Property{
		{Link: "a", Location: "Savassi"},
		{Link: "b", Location: services.DefaultLocation, Street: "Rua Pernambuco", Neighborhood: "Funcionários"},
		{Link: "c", Location: "Lugar Nenhum"},
		{Link: "d", Location: "Savassi", Latitude: &lat, Longitude: &lon},
		{Link: "e", Location: services.DefaultLocation},
	}

	out, located := c.LocateAll(context.Background(), props, utils.NewWorkerPool(2, nil))
	if located != 2 {
		t.Errorf("located %d, want 2", located)
	}
	if !out[0].HasCoordinates() || *out[1].Latitude != -19.9330 {
		t.Errorf("a/b should be located: %+v / %+v", out[0], out[1])
	}
	if out[2].HasCoordinates() || out[4].HasCoordinates() {
		t.Error("unresolvable records must stay without coordinates")
	}
	if *out[3].Latitude != -1 {
		t.Error("records with coordinates must not be looked up again")
	}
	if props[0].HasCoordinates() {
		t.Error("LocateAll must not mutate its input")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("server hits: got %d, want 3", got)
	}
}
