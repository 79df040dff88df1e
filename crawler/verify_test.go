package crawler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukemcguire/pageprobe/logging"
	"github.com/lukemcguire/pageprobe/result"
)

func linkServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/get-only", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLinkVerifier_Check(t *testing.T) {
	server := linkServer(t, nil)
	v := NewLinkVerifier(server.Client(), nil, "test-agent", time.Second, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/ok", http.StatusOK},
		{"/missing", http.StatusNotFound},
		{"/moved", http.StatusOK},
		{"/get-only", http.StatusOK},
		{"/boom", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, err := v.Check(context.Background(), server.URL+tt.path)
		if err != nil {
			t.Errorf("Check(%s) error = %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Check(%s) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestLinkVerifier_Verify(t *testing.T) {
	var hits atomic.Int32
	server := linkServer(t, &hits)

	client := server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	v := NewLinkVerifier(client, nil, "test-agent", time.Second, nil)

	links := []string{
		server.URL + "/ok",
		server.URL + "/missing",
		server.URL + "/ok",
		server.URL + "/moved",
		server.URL + "/boom",
	}
	checked, broken, err := v.Verify(context.Background(), links)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if checked != 4 {
		t.Errorf("checked = %d, want 4", checked)
	}
	if hits.Load() != 1 {
		t.Errorf("/ok requested %d times, want 1", hits.Load())
	}

	want := []result.BrokenLink{
		{URL: server.URL + "/missing", StatusCode: http.StatusNotFound, Reason: "Not Found"},
		{URL: server.URL + "/moved", StatusCode: http.StatusMovedPermanently, Reason: "Unexpected Redirect"},
	}
	if len(broken) != len(want) {
		t.Fatalf("broken = %+v, want %+v", broken, want)
	}
	for i := range want {
		if broken[i] != want[i] {
			t.Errorf("broken[%d] = %+v, want %+v", i, broken[i], want[i])
		}
	}
}

func TestLinkVerifier_VerifyLogsSkippedLinks(t *testing.T) {
	server := linkServer(t, nil)
	var logs bytes.Buffer
	v := NewLinkVerifier(server.Client(), nil, "", time.Second, logging.NewWithWriter(&logs, "debug"))

	link := server.URL + "/ok"
	checked, _, err := v.Verify(context.Background(), []string{link, link})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if checked != 1 {
		t.Errorf("checked = %d, want 1", checked)
	}
	if got := strings.Count(logs.String(), "skipping check"); got != 1 {
		t.Errorf("skip log lines = %d, want 1:\n%s", got, logs.String())
	}
	if !strings.Contains(logs.String(), link) {
		t.Errorf("skip log does not name %s:\n%s", link, logs.String())
	}
}

func TestLinkVerifier_VerifyTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	dead := server.URL + "/gone"
	server.Close()

	v := NewLinkVerifier(http.DefaultClient, nil, "", time.Second, nil)
	checked, broken, err := v.Verify(context.Background(), []string{dead})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if checked != 1 || len(broken) != 1 {
		t.Fatalf("Verify() = (%d, %+v), want one broken link", checked, broken)
	}
	if !strings.HasPrefix(broken[0].Reason, "Error: ") || broken[0].StatusCode != 0 {
		t.Errorf("broken[0] = %+v, want transport error reason", broken[0])
	}
}

func TestLinkVerifier_VerifyEmpty(t *testing.T) {
	v := NewLinkVerifier(http.DefaultClient, nil, "", 0, nil)
	checked, broken, err := v.Verify(context.Background(), nil)
	if err != nil || checked != 0 || broken == nil || len(broken) != 0 {
		t.Errorf("Verify(nil) = (%d, %v, %v), want (0, [], nil)", checked, broken, err)
	}
}

func TestLinkVerifier_VerifyCancelled(t *testing.T) {
	server := linkServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := NewLinkVerifier(server.Client(), NewAdaptiveLimiter(5, 0), "", time.Second, nil)
	_, _, err := v.Verify(ctx, []string{server.URL + "/ok"})
	if !result.IsAborted(err) {
		t.Errorf("Verify() error = %v, want aborted", err)
	}
}

func TestLinkVerifier_CheckRoutes(t *testing.T) {
	server := linkServer(t, nil)
	closed := httptest.NewServer(http.NotFoundHandler())
	deadURL := closed.URL + "/x"
	closed.Close()

	v := NewLinkVerifier(server.Client(), NewAdaptiveLimiter(20, 0), "", time.Second, nil)
	routes := []string{server.URL + "/ok", server.URL + "/missing", deadURL}

	statuses, err := v.CheckRoutes(context.Background(), routes)
	if err != nil {
		t.Fatalf("CheckRoutes() error = %v", err)
	}
	if len(statuses) != len(routes) {
		t.Fatalf("CheckRoutes() returned %d statuses, want %d", len(statuses), len(routes))
	}
	if statuses[0].StatusCode != http.StatusOK || statuses[0].Error != "" {
		t.Errorf("statuses[0] = %+v, want 200", statuses[0])
	}
	if statuses[1].StatusCode != http.StatusNotFound {
		t.Errorf("statuses[1] = %+v, want 404", statuses[1])
	}
	if statuses[2].StatusCode != 0 || statuses[2].Error != result.FormatKind(result.KindConnection) {
		t.Errorf("statuses[2] = %+v, want connection error", statuses[2])
	}
}

func TestLinkVerifier_CheckBadURL(t *testing.T) {
	v := NewLinkVerifier(http.DefaultClient, nil, "", time.Second, nil)
	if _, err := v.Check(context.Background(), "http://[::1"); err == nil || errors.Is(err, context.Canceled) {
		t.Errorf("Check() error = %v, want request error", err)
	}
}
