package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cogniview/internal/features"
	"cogniview/internal/model"
	ext "cogniview/internal/utils/extractor"
)

// Handler serves the REST API. Identity comes from headers set by the upstream gateway.
type Handler struct {
	svc       features.ICogniview
	extractor ext.Extractor
}

func New(svc features.ICogniview) *Handler {
	return &Handler{svc: svc, extractor: ext.New()}
}

func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")

	v1.GET("/profiles/me", h.GetProfile)
	v1.PUT("/profiles/me", h.UpsertProfile)

	v1.POST("/interviews", h.CreateInterview)
	v1.GET("/interviews", h.ListInterviews)
	v1.GET("/interviews/:id", h.GetInterview)
	v1.POST("/interviews/:id/archive", h.ArchiveInterview)
	v1.GET("/interviews/:id/sessions", h.ListInterviewSessions)
	v1.GET("/interviews/:id/stats", h.InterviewStats)

	v1.POST("/ai/parameters", h.SuggestParameters)
	v1.POST("/ai/rephrase", h.RephraseQuestion)

	v1.POST("/redeem", h.RedeemAccessCode)
	v1.GET("/sessions", h.ListCandidateSessions)
	v1.POST("/sessions/:id/room-token", h.IssueRoomToken)
	v1.POST("/sessions/:id/evaluate", h.Evaluate)
	v1.PUT("/sessions/:id/decision", h.UpdateDecision)
}

func (h *Handler) caller(c *gin.Context) (features.Caller, bool) {
	id, err := h.extractor.GetUserID(c.Request.Header)
	if err != nil {
		writeError(c, model.ErrUnauthenticated)
		return features.Caller{}, false
	}
	return features.Caller{
		ID:    id,
		Roles: h.extractor.GetRoleIDs(c.Request.Header),
		Name:  h.extractor.GetUserName(c.Request.Header),
		Email: h.extractor.GetUserEmail(c.Request.Header),
	}, true
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, model.Invalid("malformed request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) GetProfile(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	p, err := h.svc.GetProfile(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpsertProfile(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req model.Profile
	if !bind(c, &req) {
		return
	}
	p, err := h.svc.UpsertProfile(c.Request.Context(), caller, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateInterview(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req model.Interview
	if !bind(c, &req) {
		return
	}
	iv, err := h.svc.CreateInterview(c.Request.Context(), caller, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, iv)
}

func (h *Handler) ListInterviews(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	list, err := h.svc.ListInterviews(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interviews": list})
}

func (h *Handler) GetInterview(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	iv, err := h.svc.GetInterview(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, iv)
}

func (h *Handler) ArchiveInterview(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	iv, err := h.svc.ArchiveInterview(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, iv)
}

func (h *Handler) ListInterviewSessions(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	list, err := h.svc.ListInterviewSessions(c.Request.Context(), caller, c.Param("id"), c.Query("sort"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (h *Handler) InterviewStats(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	stats, err := h.svc.InterviewStats(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type suggestRequest struct {
	JobRole string `json:"jobRole"`
}

func (h *Handler) SuggestParameters(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req suggestRequest
	if !bind(c, &req) {
		return
	}
	params, err := h.svc.SuggestParameters(c.Request.Context(), caller, req.JobRole)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parameters": params})
}

type rephraseRequest struct {
	Question string `json:"question"`
}

func (h *Handler) RephraseQuestion(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req rephraseRequest
	if !bind(c, &req) {
		return
	}
	variants, err := h.svc.RephraseQuestion(c.Request.Context(), caller, req.Question)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variants": variants})
}

type redeemRequest struct {
	AccessCode string `json:"accessCode"`
}

func (h *Handler) RedeemAccessCode(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req redeemRequest
	if !bind(c, &req) {
		return
	}
	sess, err := h.svc.RedeemAccessCode(c.Request.Context(), caller, req.AccessCode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) ListCandidateSessions(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	list, err := h.svc.ListCandidateSessions(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

type roomTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) IssueRoomToken(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	tok, exp, err := h.svc.IssueRoomToken(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roomTokenResponse{Token: tok, ExpiresAt: exp})
}

func (h *Handler) Evaluate(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	ev, err := h.svc.Evaluate(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type decisionRequest struct {
	Decision model.Decision `json:"decision"`
}

func (h *Handler) UpdateDecision(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req decisionRequest
	if !bind(c, &req) {
		return
	}
	sess, err := h.svc.UpdateDecision(c.Request.Context(), caller, c.Param("id"), req.Decision)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}
