package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/zkvault/internal/common"
)

// abortWithError maps err onto a status code and a JSON error body. Only
// sentinel messages reach the client; anything unexpected is logged and
// reported as an internal error.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, common.ErrorInternal.Error()

	switch {
	case errors.Is(err, common.ErrTokenExpired):
		status, msg = http.StatusUnauthorized, common.ErrTokenExpired.Error()
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, common.ErrorValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorNotFound):
		status, msg = http.StatusNotFound, "note not found"
	case errors.Is(err, common.ErrorAlreadyExists):
		status, msg = http.StatusConflict, "already exists"
	case errors.Is(err, common.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	default:
		s.logger.Error(c.Request.Context(), "request failed",
			"request_id", requestID(c), "route", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

// bindJSON decodes the body into obj and reports validation failures as a
// 400 with a readable message.
func (s *Server) bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			s.abortWithError(c, fmt.Errorf("%w: %s", common.ErrorValidation, validationMessage(verrs)))
			return false
		}
		s.abortWithError(c, fmt.Errorf("%w: malformed request body", common.ErrorValidation))
		return false
	}
	return true
}

func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s is not a valid email", fe.Field()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("%s must be %s bytes", fe.Field(), fe.Param()))
		case "base64":
			msgs = append(msgs, fmt.Sprintf("%s must be base64", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("validation failed on field %s", fe.Field()))
		}
	}
	return strings.Join(msgs, ". ")
}
