package client

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/models"
	"github.com/aweist/whistle-bot/parser"
)

const (
	scoresPath   = "/v3/cfb/scores/JSON/"
	statsPath    = "/v3/cfb/stats/JSON/"
	schedulePath = "Games/"
	boxScorePath = "BoxScore/"

	subscriptionHeader = "Ocp-Apim-Subscription-Key"
)

// ScoreClient reads season schedules and live box scores from the
// football data API.
type ScoreClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	loc        *time.Location
}

type ScoreClientConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Location *time.Location
}

func NewScoreClient(cfg ScoreClientConfig) *ScoreClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ScoreClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		loc: cfg.Location,
	}
}

// FetchSeasonSchedule returns teamCode's games for year.
func (c *ScoreClient) FetchSeasonSchedule(ctx context.Context, year int, teamCode string) ([]models.GameRecord, error) {
	body, err := c.get(ctx, scoresPath+schedulePath+strconv.Itoa(year))
	if err != nil {
		return nil, apperrors.Unavailable("scores.season", err)
	}

	games, err := parser.NewSeasonParser(teamCode, c.loc).ParseSeason(body)
	if err != nil {
		return nil, apperrors.Unavailable("scores.season", err)
	}
	return games, nil
}

// FetchGameState returns the live snapshot for gameID. Any failure is
// reported as unavailable data.
func (c *ScoreClient) FetchGameState(ctx context.Context, gameID int) (*models.GameState, error) {
	body, err := c.get(ctx, statsPath+boxScorePath+strconv.Itoa(gameID))
	if err != nil {
		return nil, apperrors.Unavailable("scores.boxscore", err)
	}

	state, err := parser.ParseBoxScore(body)
	if err != nil {
		return nil, apperrors.Unavailable("scores.boxscore", err)
	}
	return state, nil
}

func (c *ScoreClient) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set(subscriptionHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API request failed - path: %s, Status: %d, Body: %s", path, resp.StatusCode, string(body))
	}

	var reader io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
