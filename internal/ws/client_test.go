package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type chanHandler struct {
	events chan Envelope
}

func (h *chanHandler) HandleEvent(_ context.Context, env Envelope) {
	h.events <- env
}

// fakeChannel upgrades one connection and exposes it to the test.
func fakeChannel(t *testing.T) (url string, conns chan *websocket.Conn) {
	t.Helper()
	conns = make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}

	r := chi.NewRouter()
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conns <- conn
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", conns
}

func TestDeliversInboundEnvelopesInOrder(t *testing.T) {
	url, conns := fakeChannel(t)
	handler := &chanHandler{events: make(chan Envelope, 8)}

	client, err := Dial(context.Background(), url, nil, handler, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() {
		client.Close()
		client.Wait()
	}()
	server := <-conns

	for _, ev := range []EventType{EventUserTyping, EventUserStopTyping} {
		env, err := NewEnvelope(ev, TypingPayload{UserID: 7})
		if err != nil {
			t.Fatalf("envelope: %v", err)
		}
		data, _ := json.Marshal(env)
		if err := server.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatalf("server write: %v", err)
		}
	}

	for _, want := range []EventType{EventUserTyping, EventUserStopTyping} {
		select {
		case got := <-handler.events:
			if got.Event != want {
				t.Fatalf("event = %s, want %s", got.Event, want)
			}
			var p TypingPayload
			if err := json.Unmarshal(got.Data, &p); err != nil || p.UserID != 7 {
				t.Fatalf("payload = %+v, err=%v", p, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestSendReachesServer(t *testing.T) {
	url, conns := fakeChannel(t)
	handler := &chanHandler{events: make(chan Envelope, 1)}

	client, err := Dial(context.Background(), url, nil, handler, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() {
		client.Close()
		client.Wait()
	}()
	server := <-conns

	env, err := NewEnvelope(EventPrivateMessage, PrivateMessagePayload{ReceiverID: 5, Message: "hello"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if err := client.Send(env); err != nil {
		t.Fatalf("send: %v", err)
	}

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	var got Envelope
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Event != EventPrivateMessage {
		t.Fatalf("event = %s", got.Event)
	}
	var p PrivateMessagePayload
	if err := json.Unmarshal(got.Data, &p); err != nil || p.ReceiverID != 5 || p.Message != "hello" {
		t.Fatalf("payload = %+v, err=%v", p, err)
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	url, conns := fakeChannel(t)
	handler := &chanHandler{events: make(chan Envelope, 1)}

	client, err := Dial(context.Background(), url, nil, handler, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	<-conns
	client.Close()
	client.Wait()

	if err := client.Send(Envelope{Event: EventTyping}); err == nil {
		t.Fatalf("expected error sending on a closed connection")
	}
	select {
	case <-client.Done():
	default:
		t.Fatalf("Done must be closed after Close")
	}
}

func TestMalformedFrameIsSkipped(t *testing.T) {
	url, conns := fakeChannel(t)
	handler := &chanHandler{events: make(chan Envelope, 2)}

	client, err := Dial(context.Background(), url, nil, handler, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() {
		client.Close()
		client.Wait()
	}()
	server := <-conns

	if err := server.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	env, _ := NewEnvelope(EventUserStatus, StatusPayload{UserID: 1})
	data, _ := json.Marshal(env)
	if err := server.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case got := <-handler.events:
		if got.Event != EventUserStatus {
			t.Fatalf("event = %s", got.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("valid frame after malformed one was not delivered")
	}
}
