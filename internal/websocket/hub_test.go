package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, groupID string) *Client {
	return &Client{
		hub:     hub,
		groupID: groupID,
		send:    make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "g1")
	c2 := mockClient(hub, "g2")

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}
	if got := hub.GroupClientCount("g1"); got != 1 {
		t.Fatalf("expected 1 client in g1, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "g1")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastGroup(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "g1")
	c2 := mockClient(hub, "g1")
	other := mockClient(hub, "g2")
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(other)

	msg := NewMessage("completion", "toggled", "c1_2024-01-08", map[string]any{"completed": true})
	hub.BroadcastGroup("g1", msg)

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "completion_toggled" {
				t.Errorf("expected type completion_toggled, got %s", got.Type)
			}
			if got.ID != "c1_2024-01-08" {
				t.Errorf("expected id c1_2024-01-08, got %s", got.ID)
			}
			if got.Extra["completed"] != true {
				t.Errorf("expected extra completed=true, got %v", got.Extra)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	select {
	case <-other.send:
		t.Error("client in another group received the message")
	default:
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
	hub.Unregister(other)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.BroadcastGroup("g1", NewMessage("chore", "deleted", "c1", nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "g1")
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.BroadcastGroup("g1", NewMessage("test", "fill", "", nil))
	}

	// This should drop the message, not panic or block
	hub.BroadcastGroup("g1", NewMessage("test", "dropped", "", nil))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("member", "joined", "u2", nil)
	if msg.Type != "member_joined" {
		t.Errorf("expected type member_joined, got %s", msg.Type)
	}
	if msg.Entity != "member" {
		t.Errorf("expected entity member, got %s", msg.Entity)
	}
	if msg.Action != "joined" {
		t.Errorf("expected action joined, got %s", msg.Action)
	}
	if msg.ID != "u2" {
		t.Errorf("expected id u2, got %s", msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "g1")
			hub.Register(c)
			hub.BroadcastGroup("g1", NewMessage("test", "concurrent", "", nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
