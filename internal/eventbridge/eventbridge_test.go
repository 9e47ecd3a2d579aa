package eventbridge

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBridge_PublishStep_DeliveredToSubscriber(t *testing.T) {
	b := New(nil)
	srv := httptest.NewServer(b)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	b.PublishStep("agent-1", map[string]string{"kind": "message"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if evt.Type != EventStep || evt.AgentID != "agent-1" {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestBridge_PublishWithNoSubscriber_DoesNotPanic(t *testing.T) {
	b := New(nil)
	b.PublishComplete("agent-1", "done")
	b.PublishError("agent-1", nil)
}
