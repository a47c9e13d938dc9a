package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

// AvailabilityService то, что API использует из service.AvailabilityService
type AvailabilityService interface {
	CreateRuleGroup(ctx context.Context, coachID int64, req service.CreateRulesRequest) (uuid.UUID, []*model.AvailabilityRule, error)
	ListRules(ctx context.Context, coachID int64) ([]*model.AvailabilityRule, error)
	UpdateRule(ctx context.Context, coachID, ruleID int64, req service.UpdateRuleRequest) (*model.AvailabilityRule, error)
	DeactivateRule(ctx context.Context, coachID, ruleID int64) error
	DeactivateGroup(ctx context.Context, coachID int64, groupID uuid.UUID) error
	ListOfferableSlots(ctx context.Context, coachID int64, date string) ([]time.Time, error)
	ListCandidates(ctx context.Context, coachID int64, date string) ([]model.SlotCandidate, error)
}

// BookingService бронирование
type BookingService interface {
	Book(ctx context.Context, req service.BookRequest) (*model.Session, error)
}

// SessionService переходы занятий
type SessionService interface {
	Get(ctx context.Context, sessionID, actorID int64) (*model.Session, error)
	ListUpcoming(ctx context.Context, userID int64) ([]*model.Session, error)
	ConfirmPaymentByRef(ctx context.Context, ref string) (*model.Session, error)
	Start(ctx context.Context, sessionID, actorID int64) (*model.Session, error)
	Complete(ctx context.Context, sessionID, actorID int64) (*model.Session, error)
	Cancel(ctx context.Context, sessionID, actorID int64, reason string) (*service.CancelResult, error)
}

// StatsService статистика коуча
type StatsService interface {
	GetCoachStats(ctx context.Context, coachID int64) (*model.CoachStats, error)
}

// Handler HTTP обработчики API расписания
type Handler struct {
	availability AvailabilityService
	booking      BookingService
	sessions     SessionService
	stats        StatsService
	logger       *zap.Logger
}

func NewHandler(availability AvailabilityService, booking BookingService, sessions SessionService, stats StatsService, logger *zap.Logger) *Handler {
	return &Handler{
		availability: availability,
		booking:      booking,
		sessions:     sessions,
		stats:        stats,
		logger:       logger,
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type confirmPaymentRequest struct {
	PaymentRef string `json:"payment_ref" binding:"required"`
}

// ListSlots GET /coaches/:id/slots?date=YYYY-MM-DD
func (h *Handler) ListSlots(c *gin.Context) {
	coachID, ok := pathID(c, "id")
	if !ok {
		return
	}

	starts, err := h.availability.ListOfferableSlots(c.Request.Context(), coachID, c.Query("date"))
	if err != nil {
		Error(c, err)
		return
	}

	out := make([]string, 0, len(starts))
	for _, s := range starts {
		out = append(out, s.Format(time.RFC3339))
	}
	JSON(c, http.StatusOK, out)
}

// ListCandidates GET /coaches/:id/candidates?date=YYYY-MM-DD
func (h *Handler) ListCandidates(c *gin.Context) {
	coachID, ok := pathID(c, "id")
	if !ok {
		return
	}

	candidates, err := h.availability.ListCandidates(c.Request.Context(), coachID, c.Query("date"))
	if err != nil {
		Error(c, err)
		return
	}
	if candidates == nil {
		candidates = []model.SlotCandidate{}
	}
	JSON(c, http.StatusOK, candidates)
}

// Book POST /sessions, студент берётся из токена
func (h *Handler) Book(c *gin.Context) {
	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperrors.Validation("invalid payload: %v", err))
		return
	}
	req.StudentID = actorID(c)

	session, err := h.booking.Book(c.Request.Context(), req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, session)
}

// ListSessions GET /sessions
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListUpcoming(c.Request.Context(), actorID(c))
	if err != nil {
		Error(c, err)
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	JSON(c, http.StatusOK, sessions)
}

// GetSession GET /sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := h.sessions.Get(c.Request.Context(), id, actorID(c))
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, session)
}

// CancelSession POST /sessions/:id/cancel
func (h *Handler) CancelSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, apperrors.Validation("invalid payload: %v", err))
			return
		}
	}

	res, err := h.sessions.Cancel(c.Request.Context(), id, actorID(c), req.Reason)
	if err != nil {
		Error(c, err)
		return
	}

	meta := map[string]interface{}{"refunded": res.Refunded}
	if res.RefundWarning != "" {
		meta["warning"] = res.RefundWarning
	}
	JSON(c, http.StatusOK, res.Session, meta)
}

// StartSession POST /sessions/:id/start
func (h *Handler) StartSession(c *gin.Context) {
	h.coachTransition(c, h.sessions.Start)
}

// CompleteSession POST /sessions/:id/complete
func (h *Handler) CompleteSession(c *gin.Context) {
	h.coachTransition(c, h.sessions.Complete)
}

func (h *Handler) coachTransition(c *gin.Context, fn func(ctx context.Context, sessionID, actorID int64) (*model.Session, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := fn(c.Request.Context(), id, actorID(c))
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, session)
}

// ConfirmPayment POST /payments/confirm, колбэк провайдера.
// Статус платежа всё равно перепроверяется у провайдера.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperrors.Validation("payment_ref is required"))
		return
	}

	session, err := h.sessions.ConfirmPaymentByRef(c.Request.Context(), req.PaymentRef)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, session)
}

// ListRules GET /availability
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.availability.ListRules(c.Request.Context(), actorID(c))
	if err != nil {
		Error(c, err)
		return
	}
	if rules == nil {
		rules = []*model.AvailabilityRule{}
	}
	JSON(c, http.StatusOK, rules)
}

// CreateRules POST /availability
func (h *Handler) CreateRules(c *gin.Context) {
	var req service.CreateRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperrors.Validation("invalid payload: %v", err))
		return
	}

	groupID, rules, err := h.availability.CreateRuleGroup(c.Request.Context(), actorID(c), req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, gin.H{"group_id": groupID, "rules": rules})
}

// UpdateRule PUT /availability/:id
func (h *Handler) UpdateRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperrors.Validation("invalid payload: %v", err))
		return
	}

	rule, err := h.availability.UpdateRule(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, rule)
}

// DeactivateRule DELETE /availability/:id
func (h *Handler) DeactivateRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.availability.DeactivateRule(c.Request.Context(), actorID(c), id); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// DeactivateGroup DELETE /availability/groups/:group_id
func (h *Handler) DeactivateGroup(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("group_id"))
	if err != nil {
		Error(c, apperrors.Validation("group_id must be a UUID"))
		return
	}
	if err := h.availability.DeactivateGroup(c.Request.Context(), actorID(c), groupID); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// CoachStats GET /coach/stats
func (h *Handler) CoachStats(c *gin.Context) {
	stats, err := h.stats.GetCoachStats(c.Request.Context(), actorID(c))
	if err != nil {
		Error(c, err)
		return
	}
	JSON(c, http.StatusOK, stats)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		Error(c, apperrors.Validation("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}
