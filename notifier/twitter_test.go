package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweist/whistle-bot/apperrors"
)

func newTestTwitter(t *testing.T, handler http.HandlerFunc) *TwitterNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTwitterNotifier(TwitterConfig{
		BaseURL:           srv.URL,
		ConsumerKey:       "ck",
		ConsumerSecret:    "cs",
		AccessToken:       "at",
		AccessTokenSecret: "ats",
		BotUserID:         "42",
	})
}

func TestTwitterNotifier_Post(t *testing.T) {
	var got textPayload
	n := newTestTwitter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth "))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1","text":"shhvreeeEEEOOOOOooow"}}`))
	})

	require.NoError(t, n.Post(context.Background(), "shhvreeeEEEOOOOOooow"))
	assert.Equal(t, "shhvreeeEEEOOOOOooow", got.Text)
	assert.Equal(t, "twitter", n.GetType())
}

func TestTwitterNotifier_PostErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   apperrors.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, apperrors.KindAuth},
		{"forbidden", http.StatusForbidden, apperrors.KindAuth},
		{"server error", http.StatusInternalServerError, apperrors.KindTransport},
		{"rate limited", http.StatusTooManyRequests, apperrors.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestTwitter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			err := n.Post(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestTwitterNotifier_Direct(t *testing.T) {
	var got textPayload
	n := newTestTwitter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/dm_conversations/with/1001/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, n.Direct(context.Background(), "1001", "Toooot!"))
	assert.Equal(t, "Toooot!", got.Text)
}

func TestTwitterNotifier_RecentPosts(t *testing.T) {
	n := newTestTwitter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/42/tweets", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		w.Write([]byte(`{"data":[
			{"id":"3","text":"third","created_at":"2024-11-29T20:03:00.000Z"},
			{"id":"2","text":"second","created_at":"2024-11-29T20:02:00.000Z"},
			{"id":"1","text":"first","created_at":"2024-11-29T20:01:00.000Z"}
		]}`))
	})

	posts, err := n.RecentPosts(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "third", posts[0].Text)
	assert.Equal(t, "second", posts[1].Text)
	assert.Equal(t, 2024, posts[0].PostedAt.Year())
}

func TestTwitterNotifier_FetchMessages(t *testing.T) {
	n := newTestTwitter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/dm_events", r.URL.Path)
		assert.Equal(t, "MessageCreate", r.URL.Query().Get("event_types"))
		w.Write([]byte(`{"data":[
			{"id":"9","event_type":"MessageCreate","text":"log 3","sender_id":"1001","created_at":"2024-11-29T20:05:00.000Z"},
			{"id":"8","event_type":"MessageCreate","text":"Toot!","sender_id":"42","created_at":"2024-11-29T20:04:00.000Z"},
			{"id":"7","event_type":"MessageCreate","text":"toot","sender_id":"1001","created_at":"2024-11-29T20:00:00.000Z"}
		]}`))
	})

	since := time.Date(2024, 11, 29, 20, 1, 0, 0, time.UTC)
	msgs, err := n.FetchMessages(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "9", msgs[0].ID)
	assert.Equal(t, "1001", msgs[0].SenderID)
	assert.Equal(t, "log 3", msgs[0].Text)
}

func TestTwitterNotifier_FetchMessagesBadBody(t *testing.T) {
	n := newTestTwitter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := n.FetchMessages(context.Background(), time.Time{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindTransport))
}
