package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/models"
)

const (
	minTimelineResults = 5
	maxTimelineResults = 100
	dmPageSize         = 50
)

var (
	_ Notifier      = (*TwitterNotifier)(nil)
	_ InboundSource = (*TwitterNotifier)(nil)
)

// TwitterNotifier posts and reads through the v2 API with OAuth 1.0a user
// context.
type TwitterNotifier struct {
	baseURL    string
	botUserID  string
	httpClient *http.Client
}

type TwitterConfig struct {
	BaseURL           string
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
	BotUserID         string
	Timeout           time.Duration
}

func NewTwitterNotifier(cfg TwitterConfig) *TwitterNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	oauthCfg := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)

	httpClient := oauthCfg.Client(context.Background(), token)
	httpClient.Timeout = cfg.Timeout

	return &TwitterNotifier{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		botUserID:  cfg.BotUserID,
		httpClient: httpClient,
	}
}

func (t *TwitterNotifier) GetType() string {
	return "twitter"
}

type textPayload struct {
	Text string `json:"text"`
}

func (t *TwitterNotifier) Post(ctx context.Context, text string) error {
	return t.send(ctx, "twitter.post", "/2/tweets", textPayload{Text: text})
}

func (t *TwitterNotifier) Direct(ctx context.Context, recipientID, text string) error {
	path := "/2/dm_conversations/with/" + url.PathEscape(recipientID) + "/messages"
	return t.send(ctx, "twitter.direct", path, textPayload{Text: text})
}

type timelineResponse struct {
	Data []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
}

func (t *TwitterNotifier) RecentPosts(ctx context.Context, n int) ([]models.Whistle, error) {
	max := n
	if max < minTimelineResults {
		max = minTimelineResults
	}
	if max > maxTimelineResults {
		max = maxTimelineResults
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(max))
	q.Set("tweet.fields", "created_at")
	q.Set("exclude", "replies,retweets")

	var resp timelineResponse
	if err := t.get(ctx, "twitter.timeline", "/2/users/"+url.PathEscape(t.botUserID)+"/tweets", q, &resp); err != nil {
		return nil, err
	}

	whistles := make([]models.Whistle, 0, len(resp.Data))
	for _, tw := range resp.Data {
		whistles = append(whistles, models.Whistle{ID: tw.ID, Text: tw.Text, PostedAt: tw.CreatedAt})
		if len(whistles) == n {
			break
		}
	}
	return whistles, nil
}

type dmEventsResponse struct {
	Data []struct {
		ID        string    `json:"id"`
		EventType string    `json:"event_type"`
		Text      string    `json:"text"`
		SenderID  string    `json:"sender_id"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
}

// FetchMessages returns message events sent to the bot after since.
func (t *TwitterNotifier) FetchMessages(ctx context.Context, since time.Time) ([]models.DirectMessage, error) {
	q := url.Values{}
	q.Set("event_types", "MessageCreate")
	q.Set("dm_event.fields", "id,text,sender_id,created_at")
	q.Set("max_results", strconv.Itoa(dmPageSize))

	var resp dmEventsResponse
	if err := t.get(ctx, "twitter.dm_events", "/2/dm_events", q, &resp); err != nil {
		return nil, err
	}

	var messages []models.DirectMessage
	for _, ev := range resp.Data {
		if ev.SenderID == t.botUserID {
			continue
		}
		if !ev.CreatedAt.After(since) {
			continue
		}
		messages = append(messages, models.DirectMessage{
			ID:          ev.ID,
			SenderID:    ev.SenderID,
			RecipientID: t.botUserID,
			Text:        ev.Text,
			Timestamp:   ev.CreatedAt,
		})
	}
	return messages, nil
}

func (t *TwitterNotifier) send(ctx context.Context, op, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Transport(op, fmt.Errorf("marshaling payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperrors.Transport(op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return apperrors.Transport(op, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	return checkStatus(op, resp)
}

func (t *TwitterNotifier) get(ctx context.Context, op, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return apperrors.Transport(op, fmt.Errorf("creating request: %w", err))
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return apperrors.Transport(op, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if err := checkStatus(op, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Transport(op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperrors.Auth(op, err)
	}
	return apperrors.Transport(op, err)
}
