package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aweist/whistle-bot/logging"
	"github.com/aweist/whistle-bot/metrics"
	"github.com/aweist/whistle-bot/models"
	"github.com/aweist/whistle-bot/notifier"
	"github.com/aweist/whistle-bot/scheduler"
)

//go:embed templates/*
var templates embed.FS

const (
	defaultWhistleLimit = 20
	maxWhistleLimit     = 200
	icsGameLength       = 4 * time.Hour
)

// Storage is the read side of the bot's database used by the server.
type Storage interface {
	GetAllGames() ([]models.GameRecord, error)
	DeleteGame(gameID int) error
	RecentWhistles(n int) ([]models.Whistle, error)
}

type Server struct {
	storage  Storage
	board    *scheduler.StatusBoard
	metrics  *metrics.Metrics
	logger   *zap.Logger
	location *time.Location
	teamName string
	port     string
}

type PageData struct {
	Status      scheduler.Status
	Games       []models.GameRecord
	Whistles    []models.Whistle
	CurrentTime string
	TeamName    string
}

type ServerConfig struct {
	Storage  Storage
	Board    *scheduler.StatusBoard
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Location *time.Location
	TeamName string
	Port     string
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Server{
		storage:  cfg.Storage,
		board:    cfg.Board,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		location: cfg.Location,
		teamName: cfg.TeamName,
		port:     cfg.Port,
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware(s.logger))
	r.SetHTMLTemplate(template.Must(template.ParseFS(templates, "templates/status.html")))

	r.GET("/", s.handleStatusPage)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/api/state", s.handleState)
	r.GET("/api/games", s.handleGames)
	r.GET("/api/games.ics", s.handleCalendar)
	r.DELETE("/api/games/:id", s.handleDeleteGame)
	r.GET("/api/whistles", s.handleWhistles)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting status web server", zap.String("addr", "http://localhost:"+s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleStatusPage(c *gin.Context) {
	games, err := s.storage.GetAllGames()
	if err != nil {
		c.String(http.StatusInternalServerError, "Error fetching games: %v", err)
		return
	}

	whistles, err := s.storage.RecentWhistles(defaultWhistleLimit)
	if err != nil {
		c.String(http.StatusInternalServerError, "Error fetching whistles: %v", err)
		return
	}

	for i := range games {
		games[i].Kickoff = games[i].Kickoff.In(s.location)
	}
	for i := range whistles {
		whistles[i].PostedAt = whistles[i].PostedAt.In(s.location)
	}

	c.HTML(http.StatusOK, "status.html", PageData{
		Status:      s.board.Get(),
		Games:       games,
		Whistles:    whistles,
		CurrentTime: time.Now().In(s.location).Format("2006-01-02 15:04:05 MST"),
		TeamName:    s.teamName,
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.Get())
}

func (s *Server) handleGames(c *gin.Context) {
	games, err := s.storage.GetAllGames()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if games == nil {
		games = []models.GameRecord{}
	}
	c.JSON(http.StatusOK, games)
}

func (s *Server) handleCalendar(c *gin.Context) {
	games, err := s.storage.GetAllGames()
	if err != nil {
		c.String(http.StatusInternalServerError, "Error fetching games: %v", err)
		return
	}

	ics := notifier.GenerateICS(games, icsGameLength, time.Now())
	c.Header("Content-Disposition", `attachment; filename="games.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}

func (s *Server) handleDeleteGame(c *gin.Context) {
	gameID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game id must be a number"})
		return
	}

	if err := s.storage.DeleteGame(gameID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("Deleted game", zap.Int("game_id", gameID))
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleWhistles(c *gin.Context) {
	limit := defaultWhistleLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		limit = n
	}
	if limit > maxWhistleLimit {
		limit = maxWhistleLimit
	}

	whistles, err := s.storage.RecentWhistles(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if whistles == nil {
		whistles = []models.Whistle{}
	}
	c.JSON(http.StatusOK, whistles)
}
