package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewClient(Config{BaseURL: srv.URL + "/", APIKey: "secret", Timeout: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestRegister_SendsFormAndToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/eventsessions/55/register" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-auth-token") != "secret" {
			t.Errorf("missing token header")
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("email") != "a@x.com" || r.PostForm.Get("sendEmail") != "false" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"link":"https://platform/p/abc"}`))
	})

	reg, err := c.Register(context.Background(), 55, "a@x.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Link != "https://platform/p/abc" {
		t.Fatalf("link = %q", reg.Link)
	}
}

func TestRegister_Non2xxIsFatal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := c.Register(context.Background(), 55, "a@x.com")
	if !errors.Is(err, ErrExternalCallFailed) {
		t.Fatalf("expected ErrExternalCallFailed, got %v", err)
	}
}

func TestVisitorStats_DecodesLooseNumbers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats/users" || r.URL.Query().Get("from") != "2026-03-10" || r.URL.Query().Get("eventId") != "77" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`[
			{"email":"a@x.com","eventSessions":[{"eventId":"77","attentionControl":{"confirmedCount":3,"shownCount":5},"connections":[{"duration":"600"},{"duration":30.0}]}]},
			{"eventSessions":[]}
		]`))
	})

	stats, err := c.VisitorStats(context.Background(), 77, "2026-03-10")
	if err != nil {
		t.Fatalf("VisitorStats: %v", err)
	}
	if len(stats) != 2 || stats[0].Email == nil || *stats[0].Email != "a@x.com" || stats[1].Email != nil {
		t.Fatalf("unexpected stats %+v", stats)
	}

	es := stats[0].EventSessions[0]
	if es.EventID != 77 || es.AttentionControl.ShownCount != 5 || es.Connections[0].Duration != 600 || es.Connections[1].Duration != 30 {
		t.Fatalf("unexpected session %+v", es)
	}
}

func TestReads_Non200IsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	if _, err := c.VisitorStats(ctx, 1, "2026-01-01"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("VisitorStats: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.TestResults(ctx, 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("TestResults: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.SessionInfo(ctx, 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("SessionInfo: expected ErrUnavailable, got %v", err)
	}
	if _, ok := c.TestID(ctx, 1); ok {
		t.Fatal("TestID should degrade to not found")
	}
}

func TestTestID_LastTestFileWins(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ACTIVE","files":[
			{"id":1,"fileType":"test"},
			{"id":2,"fileType":"presentation"},
			{"id":3,"fileType":"test"}
		]}`))
	})

	id, ok := c.TestID(context.Background(), 9)
	if !ok || id != 3 {
		t.Fatalf("TestID = %d, %v", id, ok)
	}
}

func TestTestResults_FirstBlock(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tests/3/results" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"users":[{"email":"a@x.com","correctlyAnsweredQuestions":8,"isPassed":true}]},{"users":[]}]`))
	})

	res, err := c.TestResults(context.Background(), 3)
	if err != nil {
		t.Fatalf("TestResults: %v", err)
	}
	if len(res.Users) != 1 || *res.Users[0].CorrectlyAnsweredQuestions != 8 || !*res.Users[0].IsPassed {
		t.Fatalf("unexpected results %+v", res)
	}
}

func TestTestResults_TolerantCounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"users":[
			{"email":"a@x.com","correctlyAnsweredQuestions":"7","isPassed":true},
			{"email":"b@x.com","correctlyAnsweredQuestions":null,"isPassed":false}
		]}]`))
	})

	res, err := c.TestResults(context.Background(), 3)
	if err != nil {
		t.Fatalf("string count broke the decode: %v", err)
	}
	if len(res.Users) != 2 {
		t.Fatalf("unexpected results %+v", res)
	}
	if got := res.Users[0].CorrectlyAnsweredQuestions.Value(); got == nil || *got != 7 {
		t.Fatalf("string count = %v, want 7", got)
	}
	if got := res.Users[1].CorrectlyAnsweredQuestions.Value(); got != nil {
		t.Fatalf("null count = %v, want nil", *got)
	}
}

func TestClient_TimeoutDegrades(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	if _, err := c.SessionInfo(context.Background(), 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on timeout, got %v", err)
	}
}
