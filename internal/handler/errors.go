package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cogniview/internal/model"
	logging "cogniview/pkg/logger/pkg"
)

type errorResponse struct {
	Error string `json:"error"`
}

var statusByError = []struct {
	err    error
	status int
}{
	{model.ErrInvalidInput, http.StatusBadRequest},
	{model.ErrIllegalTransition, http.StatusBadRequest},
	{model.ErrUnauthenticated, http.StatusUnauthorized},
	{model.ErrForbidden, http.StatusForbidden},
	{model.ErrNotFound, http.StatusNotFound},
	{model.ErrNoActiveSession, http.StatusNotFound},
	{model.ErrInterviewMissing, http.StatusNotFound},
	{model.ErrInterviewClosed, http.StatusConflict},
	{model.ErrAlreadyCompleted, http.StatusConflict},
	{model.ErrDuplicateSession, http.StatusConflict},
	{model.ErrSessionNotFinished, http.StatusConflict},
	{model.ErrRoomBusy, http.StatusConflict},
	{model.ErrAnalysisFailed, http.StatusBadGateway},
}

// statusFor maps a domain error to an HTTP status. Unknown errors are internal.
func statusFor(err error) int {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		logging.Logger(c.Request.Context()).Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	case errors.Is(err, model.ErrAnalysisFailed):
		logging.Logger(c.Request.Context()).Warn("Analysis failed", zap.Error(err))
		msg = model.ErrAnalysisFailed.Error()
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
