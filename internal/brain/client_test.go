package brain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFetchResponseSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":[{"text":"Hola"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	reply, err := c.FetchResponse(context.Background(), ChatRequest{UserInput: "Hola", UserID: "u1", RoleID: "companion"}, 7)
	if err != nil {
		t.Fatalf("FetchResponse() error = %v", err)
	}
	if reply == nil || len(reply.Segments) != 1 {
		t.Fatalf("FetchResponse() = %+v, want one segment", reply)
	}
	if reply.Input != "Hola" || reply.Token != 7 {
		t.Fatalf("turn = {Input:%q Token:%d}, want the request's input and token", reply.Input, reply.Token)
	}
}

func TestFetchResponseAbortReturnsNilNil(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	c := NewClient(srv.URL, "", zerolog.Nop())
	reply, err := c.FetchResponse(ctx, ChatRequest{UserInput: "Hola"}, 1)
	if err != nil {
		t.Fatalf("FetchResponse() error = %v, want nil for aborted call", err)
	}
	if reply != nil {
		t.Fatalf("FetchResponse() = %+v, want nil for aborted call", reply)
	}
}

func TestFetchResponseNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", zerolog.Nop())
	reply, err := c.FetchResponse(context.Background(), ChatRequest{UserInput: "Hola"}, 1)
	if err == nil {
		t.Fatalf("FetchResponse() error = nil, want transport error")
	}
	if reply != nil {
		t.Fatalf("FetchResponse() = %+v, want nil on error", reply)
	}
	var terr *TransportError
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("error = %v, want TransportError with status 500", err)
	}
}

func TestResumeConversationPostsIdentifiers(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		got <- string(buf)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, zerolog.Nop())
	c.ResumeConversation("u1", "companion")

	select {
	case body := <-got:
		if body != `{"role_id":"companion","user_id":"u1"}` {
			t.Fatalf("resume body = %s, want user and role ids", body)
		}
	case <-time.After(time.Second):
		t.Fatalf("resume request never reached the server")
	}
}
