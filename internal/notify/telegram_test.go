package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTelegramRequiresCredentials(t *testing.T) {
	assert.Nil(t, NewTelegram("", "chat", testLogger()))
	assert.Nil(t, NewTelegram("token", "", testLogger()))
	assert.NotNil(t, NewTelegram("token", "chat", testLogger()))
}

func TestTelegramNotify(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("bot-token", "12345", testLogger())
	tg.baseURL = srv.URL

	tg.Notify(context.Background(), "cycle finished: 3 targets, 120 events")

	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "12345", gotBody["chat_id"])
	assert.Equal(t, "cycle finished: 3 targets, 120 events", gotBody["text"])
}

func TestTelegramNotifyErrorsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegram("bot-token", "12345", testLogger())
	tg.baseURL = srv.URL

	// Must not panic or block.
	tg.Notify(context.Background(), "message")
}

func TestTelegramNilReceiverNoop(t *testing.T) {
	var tg *Telegram
	tg.Notify(context.Background(), "message")
}
