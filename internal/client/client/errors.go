package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrijs2005/zkvault/internal/common"
)

// apiError is the error body returned by the server.
type apiError struct {
	Error string `json:"error"`
}

// mapError turns a resty outcome into nil or a wrapped common sentinel.
func mapError(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e != nil && e.Error != "" {
		msg = e.Error
	}

	var sentinel error
	switch resp.StatusCode() {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = common.ErrorValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = common.ErrorUnauthorized
		if msg == common.ErrTokenExpired.Error() {
			sentinel = errors.Join(common.ErrorUnauthorized, common.ErrTokenExpired)
		}
	case http.StatusNotFound:
		sentinel = common.ErrorNotFound
	case http.StatusConflict:
		sentinel = common.ErrConflict
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		sentinel = common.ErrUnavailable
	default:
		sentinel = common.ErrorInternal
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
