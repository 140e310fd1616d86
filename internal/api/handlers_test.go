package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aniways/anipush/internal/db"
	"github.com/aniways/anipush/internal/testutil"
)

// blockingRunner records events and lets the test hold the pipeline
// open to prove the webhook acknowledges first.
type blockingRunner struct {
	mu      sync.Mutex
	events  []db.Table
	started chan struct{}
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(ctx context.Context, source db.Table, raw []byte) {
	r.mu.Lock()
	r.events = append(r.events, source)
	r.mu.Unlock()
	r.started <- struct{}{}
	<-r.release
}

func (r *blockingRunner) sources() []db.Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]db.Table(nil), r.events...)
}

func TestHandleWebhook(t *testing.T) {
	runner := newBlockingRunner()
	defer close(runner.release)
	server, _ := testutil.SetupTestServer(t, runner)
	router := server.Router()

	post := func(body string) *httptest.ResponseRecorder {
		req, _ := http.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("Acknowledges Before The Pipeline Finishes", func(t *testing.T) {
		rr := post(`{"Item": {"Type": "Episode"}}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
		// The pipeline is still blocked; the response already returned.
		select {
		case <-runner.started:
		case <-time.After(2 * time.Second):
			t.Fatal("Pipeline was never invoked")
		}
		if got := runner.sources(); got[len(got)-1] != db.TableEmby {
			t.Errorf("Expected an Emby event, got %v", got)
		}
	})

	t.Run("Action Key Routes To AniRSS", func(t *testing.T) {
		rr := post(`{"action": "downloaded", "title": "X"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v", rr.Code)
		}
		select {
		case <-runner.started:
		case <-time.After(2 * time.Second):
			t.Fatal("Pipeline was never invoked")
		}
		if got := runner.sources(); got[len(got)-1] != db.TableAniRSS {
			t.Errorf("Expected an AniRSS event, got %v", got)
		}
	})

	t.Run("Unknown Shape Is Acknowledged And Dropped", func(t *testing.T) {
		before := len(runner.sources())
		rr := post(`{"something": "else"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v", rr.Code)
		}
		time.Sleep(50 * time.Millisecond)
		if len(runner.sources()) != before {
			t.Error("An unrecognized payload must not reach the pipeline")
		}
	})

	t.Run("Invalid JSON Is Acknowledged And Dropped", func(t *testing.T) {
		before := len(runner.sources())
		rr := post(`{{{`)
		if rr.Code != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v", rr.Code)
		}
		time.Sleep(50 * time.Millisecond)
		if len(runner.sources()) != before {
			t.Error("Malformed JSON must not reach the pipeline")
		}
	})
}

func TestHandleHealth(t *testing.T) {
	server, database := testutil.SetupTestServer(t, newBlockingRunner())
	router := server.Router()

	req, _ := http.NewRequest("GET", "/api/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	database.Close()
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with a closed database, got %v", rr.Code)
	}
}
