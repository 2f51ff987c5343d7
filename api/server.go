// Package api exposes the match queue over HTTP. Authentication happens
// upstream; the gateway forwards the caller in the X-User-ID header.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Aidin1998/codemeet/internal/matching"
	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
)

const (
	UserIDHeader       = "X-User-ID"
	problemContentType = "application/problem+json"
	defaultHistorySize = 20
)

// QueueService is the queue surface the handlers need.
type QueueService interface {
	JoinQueue(ctx context.Context, userID string, role matching.Role, difficulty matching.Difficulty, enableVideo bool) (matching.JoinResult, error)
	LeaveQueue(ctx context.Context, userID string) error
	GetQueueStatus(ctx context.Context, userID string) matching.QueueStatusView
}

// MatchHistory reads persisted matches.
type MatchHistory interface {
	ListByParticipant(ctx context.Context, userID string, limit int) ([]*matching.Match, error)
}

// Opportunities exposes the caller's ledger balance.
type Opportunities interface {
	Balance(ctx context.Context, userID string) (int, error)
	TryAwardDaily(ctx context.Context, userID string) (bool, error)
}

// SocketServer upgrades a request to a notification stream.
type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// Options configures the server. History, Opportunities and Sockets are
// optional; their routes answer 404 when unset.
type Options struct {
	Queue          QueueService
	History        MatchHistory
	Opportunities  Opportunities
	Sockets        SocketServer
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server represents the API server
type Server struct {
	router    *gin.Engine
	logger    *zap.Logger
	queue     QueueService
	history   MatchHistory
	ledger    Opportunities
	sockets   SocketServer
	validator *validator.Validate
}

type joinQueueRequest struct {
	Role        string `json:"role" validate:"required,oneof=interviewee interviewer both"`
	Difficulty  string `json:"difficulty" validate:"required,difficulty"`
	EnableVideo bool   `json:"enableVideo"`
}

type matchResponse struct {
	ID                  uuid.UUID            `json:"id"`
	IntervieweeID       string               `json:"intervieweeId"`
	InterviewerID       string               `json:"interviewerId"`
	Role                matching.Role        `json:"role"`
	Difficulty          matching.Difficulty  `json:"difficulty"`
	EnableVideo         bool                 `json:"enableVideo"`
	Status              matching.MatchStatus `json:"status"`
	DocumentURL         string               `json:"documentUrl,omitempty"`
	VideoRoomURL        *string              `json:"videoRoomUrl,omitempty"`
	SuggestedQuestionID *int                 `json:"suggestedQuestionId,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
	ReadyAt             *time.Time           `json:"readyAt,omitempty"`
	CompletedAt         *time.Time           `json:"completedAt,omitempty"`
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("codemeet-api"))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", UserIDHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s := &Server{
		router:    router,
		logger:    logger,
		queue:     opts.Queue,
		history:   opts.History,
		ledger:    opts.Opportunities,
		sockets:   opts.Sockets,
		validator: newValidator(),
	}
	s.registerRoutes()
	return s
}

// Router returns the gin engine, mainly for tests and http.Server wiring.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	match := s.router.Group("/api/v1/match")
	match.Use(s.requireUser())
	{
		match.POST("/queue", s.joinQueue)
		match.DELETE("/queue", s.leaveQueue)
		match.GET("/queue/status", s.queueStatus)
		match.GET("/history", s.matchHistory)
		match.GET("/opportunities", s.opportunityBalance)
		match.POST("/opportunities/daily", s.claimDaily)
		match.GET("/ws", s.serveWS)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// requireUser rejects requests the gateway did not attribute to a user.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			s.problem(c, apperrors.NewUnauthorizedError("missing "+UserIDHeader+" header", c.Request.URL.Path))
			c.Abort()
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func (s *Server) joinQueue(c *gin.Context) {
	var req joinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.problem(c, apperrors.NewValidationError("invalid request body: "+err.Error(), c.Request.URL.Path))
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.problem(c, validationProblem(err, c.Request.URL.Path))
		return
	}
	role, err := matching.ParseRole(req.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	difficulty, err := matching.ParseDifficulty(req.Difficulty)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString("userID")
	res, err := s.queue.JoinQueue(ctx, userID, role, difficulty, req.EnableVideo)
	if apperrors.Is(err, apperrors.ErrConflict) {
		// Point the caller at the entry they already hold.
		pd := apperrors.FromError(err, c.Request.URL.Path)
		if st := s.queue.GetQueueStatus(ctx, userID); st.QueueID != nil {
			pd.WithExtra("queueId", st.QueueID.String()).WithExtra("aheadCount", st.AheadCount)
		}
		s.problem(c, pd)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) leaveQueue(c *gin.Context) {
	if err := s.queue.LeaveQueue(c.Request.Context(), c.GetString("userID")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) queueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.queue.GetQueueStatus(c.Request.Context(), c.GetString("userID")))
}

func (s *Server) matchHistory(c *gin.Context) {
	if s.history == nil {
		s.problem(c, apperrors.NewNotFoundError("match history is not available", c.Request.URL.Path))
		return
	}
	var q struct {
		Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.problem(c, apperrors.NewValidationError("invalid query: "+err.Error(), c.Request.URL.Path))
		return
	}
	if err := s.validator.Struct(q); err != nil {
		s.problem(c, validationProblem(err, c.Request.URL.Path))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultHistorySize
	}

	userID := c.GetString("userID")
	matches, err := s.history.ListByParticipant(c.Request.Context(), userID, q.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, toMatchResponse(m, userID))
	}
	c.JSON(http.StatusOK, gin.H{"matches": out})
}

func (s *Server) opportunityBalance(c *gin.Context) {
	if s.ledger == nil {
		s.problem(c, apperrors.NewNotFoundError("opportunity ledger is not available", c.Request.URL.Path))
		return
	}
	balance, err := s.ledger.Balance(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// claimDaily grants the free opportunity once per UTC day.
func (s *Server) claimDaily(c *gin.Context) {
	if s.ledger == nil {
		s.problem(c, apperrors.NewNotFoundError("opportunity ledger is not available", c.Request.URL.Path))
		return
	}
	ctx := c.Request.Context()
	userID := c.GetString("userID")
	awarded, err := s.ledger.TryAwardDaily(ctx, userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": awarded, "balance": balance})
}

func (s *Server) serveWS(c *gin.Context) {
	if s.sockets == nil {
		s.problem(c, apperrors.NewNotFoundError("notification stream is not available", c.Request.URL.Path))
		return
	}
	// The upgrader writes its own error response on failure.
	if err := s.sockets.ServeWS(c.Writer, c.Request, c.GetString("userID")); err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.String("user_id", c.GetString("userID")), zap.Error(err))
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	pd := apperrors.FromError(err, c.Request.URL.Path)
	if pd.Status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("user_id", c.GetString("userID")),
			zap.Error(err))
	}
	s.problem(c, pd)
}

func (s *Server) problem(c *gin.Context, pd *apperrors.ProblemDetails) {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		pd.WithTraceID(sc.TraceID().String())
	}
	body, err := pd.MarshalJSON()
	if err != nil {
		c.Status(pd.Status)
		return
	}
	c.Data(pd.Status, problemContentType, body)
}

// newValidator adds the "difficulty" tag, which accepts "|" separated
// combinations such as "easy|hard".
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
		_, err := matching.ParseDifficulty(fl.Field().String())
		return err == nil
	})
	return v
}

func validationProblem(err error, instance string) *apperrors.ProblemDetails {
	pd := apperrors.NewValidationError("request validation failed", instance)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pd
	}
	fields := make([]apperrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.ValidationError{
			Field:   fe.Field(),
			Value:   fe.Value(),
			Message: "failed on the '" + fe.Tag() + "' rule",
			Code:    fe.Tag(),
		})
	}
	return pd.WithValidationErrors(fields)
}

func toMatchResponse(m *matching.Match, userID string) matchResponse {
	role, _ := m.RoleOf(userID)
	return matchResponse{
		ID:                  m.ID,
		IntervieweeID:       m.IntervieweeID,
		InterviewerID:       m.InterviewerID,
		Role:                role,
		Difficulty:          m.Difficulty,
		EnableVideo:         m.EnableVideo,
		Status:              m.Status,
		DocumentURL:         m.DocumentURL,
		VideoRoomURL:        m.VideoRoomURL,
		SuggestedQuestionID: m.SuggestedQuestionID,
		CreatedAt:           m.CreatedAt,
		ReadyAt:             m.ReadyAt,
		CompletedAt:         m.CompletedAt,
	}
}
