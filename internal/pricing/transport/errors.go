package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/metrics"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type dataResponse struct {
	Data any `json:"data"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, dataResponse{Data: data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeError maps an error onto an HTTP status and a JSON error body
func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status, body := classify(err)

	if status >= http.StatusInternalServerError {
		metrics.RecordError(body.Code, "http")
		log.Error(ctx, "Request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err))
	} else {
		log.Debug(ctx, "Request rejected",
			zap.String("route", c.FullPath()),
			zap.String("code", body.Code),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: body})
}

func classify(err error) (int, errorBody) {
	if domainErr := domain.GetDomainError(err); domainErr != nil {
		body := errorBody{Code: domainErr.Code, Message: domainErr.Message, Details: domainErr.Details}
		switch domainErr.Code {
		case domain.ErrCodeNotFound:
			return http.StatusNotFound, body
		case domain.ErrCodeInvalidInput, domain.ErrCodeInvalidRule:
			return http.StatusBadRequest, body
		case domain.ErrCodeUnauthorized:
			return http.StatusUnauthorized, body
		case domain.ErrCodeRuleFetchFailed:
			if errors.Is(err, repo.ErrNotFound) {
				return http.StatusNotFound, errorBody{Code: domain.ErrCodeNotFound, Message: "item not found"}
			}
			// details carry the store error, keep them server side
			return http.StatusServiceUnavailable, errorBody{Code: domainErr.Code, Message: domainErr.Message}
		default:
			return http.StatusInternalServerError, errorBody{Code: domain.ErrCodeInternal, Message: domainErr.Message}
		}
	}

	switch {
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: domain.ErrCodeNotFound, Message: "not found"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Code: domain.ErrCodeInternal, Message: "request timeout"}
	case errors.Is(err, context.Canceled):
		return 499, errorBody{Code: domain.ErrCodeInternal, Message: "request canceled"}
	}

	return http.StatusInternalServerError, errorBody{Code: domain.ErrCodeInternal, Message: "internal server error"}
}
