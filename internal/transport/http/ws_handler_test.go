package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketExamFlow(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.registerCandidate(t, "70707070")

	var session sessionResponse
	if status := srv.do(t, http.MethodPost, "/exam/sessions", token, nil, &session); status != http.StatusCreated {
		t.Fatalf("start: status %d", status)
	}

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/exam/sessions/" + session.SessionID + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	typ, payload := readNext(t, conn)
	if typ != "session" {
		t.Fatalf("expected session first, got %s", typ)
	}
	var view sessionResponse
	if err := json.Unmarshal(payload, &view); err != nil || len(view.Questions) != 10 {
		t.Fatalf("unexpected session payload %s", payload)
	}
	if strings.Contains(string(payload), "correctIndex") {
		t.Fatalf("correct answers must not reach the client")
	}

	first := view.Questions[0]
	if err := conn.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]int{"position": 0, "option": correctOption(first.ID)},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	waitFor(t, conn, func(typ string, payload json.RawMessage) bool {
		if typ != "snapshot" {
			return false
		}
		var snap struct {
			Answered int `json:"answered"`
		}
		_ = json.Unmarshal(payload, &snap)
		return snap.Answered == 1
	})

	if err := conn.WriteJSON(map[string]any{"type": "bogus"}); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	waitFor(t, conn, func(typ string, _ json.RawMessage) bool { return typ == "error" })

	if err := conn.WriteJSON(map[string]any{"type": "submit"}); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	var outcomeSeen, closedSeen bool
	for i := 0; i < 10 && !(outcomeSeen && closedSeen); i++ {
		typ, payload := readNext(t, conn)
		switch typ {
		case "outcome":
			var outcome struct {
				Result struct {
					Score  int  `json:"score"`
					Passed bool `json:"passed"`
				} `json:"result"`
			}
			_ = json.Unmarshal(payload, &outcome)
			if outcome.Result.Score != 1 || outcome.Result.Passed {
				t.Fatalf("unexpected outcome %s", payload)
			}
			outcomeSeen = true
		case "closed":
			closedSeen = true
		}
	}
	if !outcomeSeen || !closedSeen {
		t.Fatalf("expected outcome and closed, got outcome=%v closed=%v", outcomeSeen, closedSeen)
	}
}

func TestWebSocketRejectsForeignSession(t *testing.T) {
	srv := newTestServer(t)
	owner, _ := srv.registerCandidate(t, "10101010")
	other, _ := srv.registerCandidate(t, "20202020")

	var session sessionResponse
	if status := srv.do(t, http.MethodPost, "/exam/sessions", owner, nil, &session); status != http.StatusCreated {
		t.Fatalf("start: status %d", status)
	}

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/exam/sessions/" + session.SessionID + "/ws?token=" + other
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail for another candidate")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}

func waitFor(t *testing.T, conn *websocket.Conn, match func(string, json.RawMessage) bool) {
	t.Helper()
	for i := 0; i < 10; i++ {
		if typ, payload := readNext(t, conn); match(typ, payload) {
			return
		}
	}
	t.Fatalf("expected message not received")
}
