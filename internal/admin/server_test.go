package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/dapcore/internal/auth"
	"github.com/danmuck/dapcore/internal/dedup"
	"github.com/danmuck/dapcore/internal/ingest"
	"github.com/danmuck/dapcore/internal/queue"
	"github.com/danmuck/dapcore/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

type staticStatus struct {
	st Status
}

func (s staticStatus) Status() Status {
	return s.st
}

func newTestServer(st Status) (*Server, *queue.Queue) {
	gin.SetMode(gin.TestMode)
	q := queue.New()
	sub := ingest.NewSubmitter(q, dedup.New(time.Minute))
	return New("127.0.0.1:0", staticStatus{st: st}, sub, nil), q
}

func TestStatusAndReady(t *testing.T) {
	testlog.Start(t)
	srv, _ := newTestServer(Status{State: "active", Online: true, Callsign: "DO6UK-1", QueueDepth: 3})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code=%d", rec.Code)
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status.Callsign != "DO6UK-1" || body.Status.QueueDepth != 3 {
		t.Fatalf("unexpected status: %+v", body.Status)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready code=%d", rec.Code)
	}
}

func TestReadyWithoutSession(t *testing.T) {
	testlog.Start(t)
	srv, _ := newTestServer(Status{State: "idle"})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready code=%d", rec.Code)
	}
}

func TestSubmitMessages(t *testing.T) {
	testlog.Start(t)
	srv, q := newTestServer(Status{State: "idle"})

	post := func(contentType, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post("text/plain", "6:1:8:3:DO6UK-1\n"); code != http.StatusAccepted {
		t.Fatalf("first submit code=%d", code)
	}
	if code := post("application/json", `{"line":"6:1:8:3:DO6UK-1"}`); code != http.StatusOK {
		t.Fatalf("duplicate submit code=%d", code)
	}
	if code := post("text/plain", "nonsense"); code != http.StatusBadRequest {
		t.Fatalf("malformed submit code=%d", code)
	}
	if code := post("application/json", `{"line":""}`); code != http.StatusBadRequest {
		t.Fatalf("empty submit code=%d", code)
	}
	if q.Len() != 1 {
		t.Fatalf("expected one queued frame, got %d", q.Len())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	srv, _ := newTestServer(Status{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dapcore_") {
		t.Fatalf("unexpected metrics response code=%d", rec.Code)
	}
}

func TestSubmitRequiresToken(t *testing.T) {
	testlog.Start(t)
	srv, q := newTestServer(Status{State: "idle"})
	srv.RequireToken(auth.StaticToken{Token: "s3cret"})

	post := func(authHeader string) int {
		req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader("6:1:1234:3:guarded"))
		req.Header.Set("Content-Type", "text/plain")
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(""); code != http.StatusUnauthorized {
		t.Fatalf("missing token code=%d", code)
	}
	if code := post("Bearer wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token code=%d", code)
	}
	if q.Len() != 0 {
		t.Fatalf("rejected submissions must not queue")
	}
	if code := post("Bearer s3cret"); code != http.StatusAccepted {
		t.Fatalf("valid token code=%d", code)
	}
	if q.Len() != 1 {
		t.Fatalf("expected one queued frame, got %d", q.Len())
	}
}
