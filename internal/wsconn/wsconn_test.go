package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		if handler != nil {
			handler(conn)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// drain reads until the peer goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(context.Background()); err != nil {
			return
		}
	}
}

func connectedClient(t *testing.T, server *httptest.Server, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig(wsURL(server), "test")
	cfg.PingInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return client
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestClient_ConnectStates(t *testing.T) {
	server := newWSServer(t, drain)

	cfg := DefaultConfig(wsURL(server), "test")
	cfg.PingInterval = 0
	client, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	var (
		mu     sync.Mutex
		states []State
	)
	client.OnStateChange(func(s State, _ error) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !client.IsConnected() {
		t.Fatalf("state = %v", client.State())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Errorf("states = %v, want [connecting connected ...]", states)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	cfg := DefaultConfig("ws://127.0.0.1:1", "test")
	client, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err == nil {
		t.Fatal("expected connect to fail")
	}
	if client.State() != StateDisconnected {
		t.Errorf("state = %v, want %v", client.State(), StateDisconnected)
	}
}

func TestClient_ConnectWithRetry_GivesUp(t *testing.T) {
	cfg := DefaultConfig("ws://127.0.0.1:1", "test")
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxReconnects = 3
	client, _ := New(cfg)
	defer client.Close()

	start := time.Now()
	if err := client.ConnectWithRetry(context.Background()); err == nil {
		t.Fatal("expected error after max attempts")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("retry took too long: %v", time.Since(start))
	}
}

func TestClient_EchoAndJSON(t *testing.T) {
	server := newWSServer(t, func(conn *websocket.Conn) {
		for {
			typ, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			if err := conn.Write(context.Background(), typ, data); err != nil {
				return
			}
		}
	})

	got := make(chan []byte, 1)
	client := connectedClient(t, server, nil)
	client.OnMessage(func(_ context.Context, msg []byte) { got <- msg })

	payload := map[string]any{"method": "SUBSCRIBE", "params": []string{"linkusdt@bookTicker"}, "id": 1}
	if err := client.SendJSON(context.Background(), payload); err != nil {
		t.Fatalf("SendJSON: %v", err)
	}

	select {
	case msg := <-got:
		var parsed map[string]any
		if err := json.Unmarshal(msg, &parsed); err != nil {
			t.Fatalf("echo is not JSON: %v (%s)", err, msg)
		}
		if parsed["method"] != "SUBSCRIBE" {
			t.Errorf("method = %v", parsed["method"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for echo")
	}
}

func TestClient_ConcurrentSend(t *testing.T) {
	var count atomic.Int32
	server := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
			count.Add(1)
		}
	})
	client := connectedClient(t, server, nil)

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if err := client.SendJSON(context.Background(), map[string]int{"w": id, "n": j}); err != nil {
					t.Errorf("SendJSON: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < workers*perWorker && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := count.Load(); got != workers*perWorker {
		t.Errorf("server received %d, want %d", got, workers*perWorker)
	}
}

func TestClient_OversizedMessageDisconnects(t *testing.T) {
	server := newWSServer(t, func(conn *websocket.Conn) {
		conn.Write(context.Background(), websocket.MessageText, []byte(strings.Repeat("A", 4096)))
		drain(conn)
	})
	client := connectedClient(t, server, func(c *Config) {
		c.MaxMessageSize = 100
		c.InitialBackoff = time.Minute
	})

	time.Sleep(300 * time.Millisecond)
	if client.State() == StateConnected {
		t.Error("client still connected after oversized frame")
	}
}

func TestClient_Reconnects(t *testing.T) {
	var accepted atomic.Int32
	server := newWSServer(t, func(conn *websocket.Conn) {
		if accepted.Add(1) == 1 {
			// Drop the first connection straight away.
			return
		}
		drain(conn)
	})

	client := connectedClient(t, server, func(c *Config) {
		c.InitialBackoff = 20 * time.Millisecond
	})

	deadline := time.Now().Add(3 * time.Second)
	for accepted.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	for !client.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if accepted.Load() < 2 || !client.IsConnected() {
		t.Fatalf("accepted = %d state = %v", accepted.Load(), client.State())
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	server := newWSServer(t, drain)
	client := connectedClient(t, server, nil)

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if client.State() != StateClosed {
		t.Errorf("state = %v, want %v", client.State(), StateClosed)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := client.Send(context.Background(), []byte("x")); err == nil {
		t.Error("Send after Close should fail")
	}
}
