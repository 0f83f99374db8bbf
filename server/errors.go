package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bloggerator/generator"
	"bloggerator/media"
)

var (
	errSessionNotFound   = errors.New("session not found")
	errPublisherDisabled = errors.New("publishing is not configured")
)

// statusFor maps error kinds to HTTP status codes and a short code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, generator.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, generator.ErrConfiguration):
		return http.StatusPreconditionFailed, "configuration_missing"
	case errors.Is(err, generator.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, errSessionNotFound),
		errors.Is(err, generator.ErrPostNotFound),
		errors.Is(err, generator.ErrMediaNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generator.ErrEditPending),
		errors.Is(err, generator.ErrSyncInProgress),
		errors.Is(err, media.ErrSuperseded):
		return http.StatusConflict, "conflict"
	case errors.Is(err, generator.ErrMalformedResponse):
		return http.StatusBadGateway, "malformed_response"
	case errors.Is(err, generator.ErrNoMediaProduced):
		return http.StatusBadGateway, "no_media_produced"
	case errors.Is(err, generator.ErrMediaDownload):
		return http.StatusBadGateway, "media_download_failed"
	case errors.Is(err, generator.ErrRemoteService):
		return http.StatusBadGateway, "remote_service_failed"
	case errors.Is(err, errPublisherDisabled), errors.Is(err, media.ErrManagerClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	body := gin.H{"error": code, "message": err.Error()}
	var ve *generator.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		body["field"] = ve.Field
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
}
