package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	kit "seattlehumus/internal/transport"
	logx "seattlehumus/pkg/logx"
)

const testToken = "123:abc"

type botAPI struct {
	mu    sync.Mutex
	calls []map[string]any
	paths []string
	fail  map[string]string // method -> raw error body
}

func (f *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, body)
	f.paths = append(f.paths, method)
	failBody, fail := f.fail[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(failBody))
		return
	}
	switch method {
	case "sendSticker":
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":2,"date":0,"chat":{"id":42,"type":"private"},`+
			`"sticker":{"file_id":"stk","file_unique_id":"u","type":"regular","width":512,"height":512}}}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`)
	}
}

func newTestAdapter(t *testing.T, api *botAPI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	a, err := New(Config{
		Token:      testToken,
		Chat:       kit.ChatTarget{ChatID: 42},
		APIURL:     srv.URL,
		Offline:    true,
		RatePerSec: 1000,
		Burst:      100,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestSendText(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	if err := a.SendText(context.Background(), "Paloma weighs 15.00 lbs"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if len(api.paths) != 1 || api.paths[0] != "sendMessage" {
		t.Fatalf("calls=%v", api.paths)
	}
	if got := api.calls[0]["text"]; got != "Paloma weighs 15.00 lbs" {
		t.Fatalf("text=%v", got)
	}
	if got := api.calls[0]["chat_id"]; got != "42" {
		t.Fatalf("chat_id=%v", got)
	}
}

func TestSendSticker(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	if err := a.SendSticker(context.Background(), "CAACAgIAAxkBAAEB"); err != nil {
		t.Fatalf("SendSticker: %v", err)
	}
	if len(api.paths) != 1 || api.paths[0] != "sendSticker" {
		t.Fatalf("calls=%v", api.paths)
	}
	if got := api.calls[0]["sticker"]; got != "CAACAgIAAxkBAAEB" {
		t.Fatalf("sticker=%v", got)
	}
}

func TestSendStickerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantInvalid bool
	}{
		{
			name:        "wrong file identifier",
			body:        `{"ok":false,"error_code":400,"description":"Bad Request: wrong file identifier/HTTP URL specified"}`,
			wantInvalid: true,
		},
		{
			name:        "wrong file identifier other wording",
			body:        `{"ok":false,"error_code":400,"description":"Bad Request: wrong file identifier"}`,
			wantInvalid: true,
		},
		{
			name: "chat not found",
			body: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`,
		},
		{
			name: "forbidden",
			body: `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := &botAPI{fail: map[string]string{"sendSticker": tt.body}}
			a := newTestAdapter(t, api)

			err := a.SendSticker(context.Background(), "bogus")
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errors.Is(err, kit.ErrInvalidSticker); got != tt.wantInvalid {
				t.Fatalf("ErrInvalidSticker=%v want %v (err=%v)", got, tt.wantInvalid, err)
			}
		})
	}
}

func TestSendLogFallsBackToChat(t *testing.T) {
	api := &botAPI{}
	a := newTestAdapter(t, api)

	if err := a.SendLog(context.Background(), "[ERROR] boom"); err != nil {
		t.Fatalf("SendLog: %v", err)
	}
	if got := api.calls[0]["chat_id"]; got != "42" {
		t.Fatalf("chat_id=%v", got)
	}
}

func TestParseChatTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    kit.ChatTarget
		wantErr bool
	}{
		{in: "-1001234", want: kit.ChatTarget{ChatID: -1001234}},
		{in: " 42 ", want: kit.ChatTarget{ChatID: 42}},
		{in: "@catnews", want: kit.ChatTarget{Username: "@catnews"}},
		{in: "", wantErr: true},
		{in: "@", wantErr: true},
		{in: "chat", wantErr: true},
		{in: "0", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseChatTarget(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseChatTarget(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseChatTarget(%q)=%+v want %+v", tt.in, got, tt.want)
		}
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("got=%q", got)
	}

	long := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitText(long, 8)
	if len(got) != 2 || got[0] != "aaaaaa" || got[1] != "bbbbbb" {
		t.Fatalf("got=%q", got)
	}

	got = splitText(strings.Repeat("x", 25), 10)
	if len(got) != 3 || len([]rune(got[2])) != 5 {
		t.Fatalf("got=%q", got)
	}
}
