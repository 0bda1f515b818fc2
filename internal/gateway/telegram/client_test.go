package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/curator-desk/internal/gateway"
)

type recordedCall struct {
	Method  string
	Payload map[string]any
}

type botAPI struct {
	mu      sync.Mutex
	calls   []recordedCall
	replies map[string]string
}

func newBotAPI(t *testing.T) (*botAPI, *Client) {
	t.Helper()
	api := &botAPI{replies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	client := NewClient(Config{BaseURL: srv.URL, Token: "T0K", ChatID: "-1001", Timeout: time.Second}, nil)
	return api, client
}

func (a *botAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	a.mu.Lock()
	a.calls = append(a.calls, recordedCall{Method: method, Payload: payload})
	reply, ok := a.replies[method]
	a.mu.Unlock()

	if !strings.HasPrefix(r.URL.Path, "/botT0K/") {
		reply = `{"ok":false,"error_code":401,"description":"Unauthorized"}`
	} else if !ok {
		reply = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(reply))
}

func (a *botAPI) last() recordedCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[len(a.calls)-1]
}

func (a *botAPI) reply(method, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies[method] = body
}

func TestClient_CreateThread(t *testing.T) {
	api, client := newBotAPI(t)
	api.reply("createForumTopic", `{"ok":true,"result":{"message_thread_id":77,"name":"x"}}`)

	id, err := client.CreateThread(context.Background(), "", "Request from Sam")
	require.NoError(t, err)
	assert.Equal(t, "77", id)
	call := api.last()
	assert.Equal(t, "createForumTopic", call.Method)
	assert.Equal(t, "-1001", call.Payload["chat_id"])
	assert.Equal(t, "Request from Sam", call.Payload["name"])
}

func TestClient_PostCardSendsKeyboard(t *testing.T) {
	api, client := newBotAPI(t)
	api.reply("sendMessage", `{"ok":true,"result":{"message_id":501}}`)

	card := gateway.Card{Text: "Request", Rows: [][]gateway.Button{{{Text: "✅ Take", Data: "take:77"}}}}
	id, err := client.PostCard(context.Background(), "77", card)
	require.NoError(t, err)
	assert.Equal(t, "501", id)

	call := api.last()
	assert.Equal(t, "sendMessage", call.Method)
	assert.EqualValues(t, 77, call.Payload["message_thread_id"])
	markup := call.Payload["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	button := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "take:77", button["callback_data"])
}

func TestClient_EditCardToleratesUnchangedMessage(t *testing.T) {
	api, client := newBotAPI(t)
	api.reply("editMessageText", `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)

	require.NoError(t, client.EditCard(context.Background(), "501", gateway.Card{Text: "same"}))
	call := api.last()
	assert.EqualValues(t, 501, call.Payload["message_id"])
	assert.Equal(t, map[string]any{"inline_keyboard": []any{}}, call.Payload["reply_markup"])
}

func TestClient_RejectedCallIsTransportError(t *testing.T) {
	api, client := newBotAPI(t)
	api.reply("sendMessage", `{"ok":false,"error_code":403,"description":"Forbidden: bot can't initiate conversation with a user"}`)

	err := client.SendDirect(context.Background(), "100", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sendMessage")
	assert.Contains(t, err.Error(), "403")
}

func TestClient_CloseThreadAndNotices(t *testing.T) {
	api, client := newBotAPI(t)
	ctx := context.Background()

	require.NoError(t, client.CloseThread(ctx, "77"))
	assert.Equal(t, "closeForumTopic", api.last().Method)

	api.reply("closeForumTopic", `{"ok":false,"error_code":400,"description":"Bad Request: TOPIC_NOT_MODIFIED"}`)
	require.NoError(t, client.CloseThread(ctx, "77"))

	api.reply("sendMessage", `{"ok":true,"result":{"message_id":9}}`)
	require.NoError(t, client.PostNotice(ctx, "", "hi"))
	_, threaded := api.last().Payload["message_thread_id"]
	assert.False(t, threaded)

	require.NoError(t, client.PostNotice(ctx, "77", "closed"))
	assert.EqualValues(t, 77, api.last().Payload["message_thread_id"])

	assert.Error(t, client.PostNotice(ctx, "general", "x"))
}

func TestClient_AnswerCallback(t *testing.T) {
	api, client := newBotAPI(t)
	require.NoError(t, client.AnswerCallback(context.Background(), "cb-1", "Taken", true))
	call := api.last()
	assert.Equal(t, "answerCallbackQuery", call.Method)
	assert.Equal(t, "cb-1", call.Payload["callback_query_id"])
	assert.Equal(t, true, call.Payload["show_alert"])
}

func TestClient_CancelledContext(t *testing.T) {
	_, client := newBotAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.CreateThread(ctx, "", "x")
	assert.Error(t, err)
}
