package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recordedCall struct {
	method  string
	payload map[string]any
}

func newBotAPI(t *testing.T, respond func(method string, payload map[string]any) (int, string)) (*Client, *[]recordedCall) {
	t.Helper()
	calls := &[]recordedCall{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if !strings.HasPrefix(r.URL.Path, "/bottest-token/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		payload := map[string]any{}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		*calls = append(*calls, recordedCall{method: method, payload: payload})
		status, resp := respond(method, payload)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-token", 5*time.Second), calls
}

func TestCreateThread(t *testing.T) {
	client, calls := newBotAPI(t, func(method string, payload map[string]any) (int, string) {
		return http.StatusOK, `{"ok":true,"result":{"message_thread_id":77,"name":"Ada"}}`
	})

	threadID, err := client.CreateThread(context.Background(), -100, "Ada")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if threadID != 77 {
		t.Fatalf("expected thread 77, got %d", threadID)
	}
	if len(*calls) != 1 || (*calls)[0].method != "createForumTopic" {
		t.Fatalf("unexpected calls %+v", *calls)
	}
	if got := (*calls)[0].payload["name"]; got != "Ada" {
		t.Fatalf("unexpected topic name %v", got)
	}
}

func TestSendTextOmitsZeroThread(t *testing.T) {
	client, calls := newBotAPI(t, func(method string, payload map[string]any) (int, string) {
		return http.StatusOK, `{"ok":true,"result":{"message_id":1,"chat":{"id":5,"type":"private"},"date":0}}`
	})

	if err := client.SendText(context.Background(), 5, "hi", 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := client.SendText(context.Background(), -100, "hi", 9); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, ok := (*calls)[0].payload["message_thread_id"]; ok {
		t.Fatalf("thread id sent for private chat")
	}
	if got := (*calls)[1].payload["message_thread_id"]; got != float64(9) {
		t.Fatalf("expected thread 9, got %v", got)
	}
}

func TestCallReturnsAPIError(t *testing.T) {
	client, _ := newBotAPI(t, func(method string, payload map[string]any) (int, string) {
		return http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	})

	err := client.CopyMessage(context.Background(), 5, -100, 10, 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.Forbidden() || apiErr.Method != "copyMessage" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestGetUpdatesDecodesMessages(t *testing.T) {
	client, calls := newBotAPI(t, func(method string, payload map[string]any) (int, string) {
		return http.StatusOK, `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":3,"from":{"id":5,"is_bot":false,"first_name":"Ada"},"chat":{"id":5,"type":"private"},"date":0,"text":"hello"}},
			{"update_id":11,"message":{"message_id":4,"message_thread_id":77,"is_topic_message":true,"chat":{"id":-100,"type":"supergroup","is_forum":true},"date":0,"forum_topic_closed":{}}}
		]}`
	})

	updates, err := client.GetUpdates(context.Background(), 10, time.Second)
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if got := (*calls)[0].payload["offset"]; got != float64(10) {
		t.Fatalf("unexpected offset %v", got)
	}
	if updates[1].Message.ForumTopicClosed == nil {
		t.Fatalf("expected forum_topic_closed to decode")
	}
}

func TestCallHonorsCancelledContext(t *testing.T) {
	client, calls := newBotAPI(t, func(method string, payload map[string]any) (int, string) {
		return http.StatusOK, `{"ok":true,"result":true}`
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.SendText(ctx, 5, "hi", 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("expected no http calls")
	}
}

func TestCallReleasesAgentWhenRequestCannotBeBuilt(t *testing.T) {
	broken := NewClient("ftp://bot.invalid", "test-token", time.Second)
	for i := 0; i < 3; i++ {
		err := broken.SendText(context.Background(), 1, "hi", 0)
		if err == nil || !strings.Contains(err.Error(), "sendMessage") {
			t.Fatalf("expected build error for sendMessage, got %v", err)
		}
	}

	// Agents returned to the pool after a failed Parse must come back clean.
	client, calls := newBotAPI(t, func(method string, payload map[string]any) (int, string) {
		return http.StatusOK, `{"ok":true,"result":{"message_id":1}}`
	})
	if err := client.SendText(context.Background(), 42, "hello", 0); err != nil {
		t.Fatalf("send after failed builds: %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].payload["text"] != "hello" {
		t.Fatalf("unexpected calls %+v", *calls)
	}
}
