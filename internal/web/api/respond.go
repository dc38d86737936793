// Package api implements the HTTP handlers of the web server.
package api

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"growrack/internal/apperr"
	"growrack/internal/logging"
)

var log = logging.WithComponent("api")

// CommandPublisher sends device commands for API-initiated actions.
type CommandPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Namespace() string
}

func errorCode(kind apperr.Kind) string {
	switch kind {
	case apperr.KindBadRequest:
		return "BAD_REQUEST"
	case apperr.KindNotFound:
		return "NOT_FOUND"
	case apperr.KindConflict:
		return "CONFLICT"
	case apperr.KindUnauthorized:
		return "UNAUTHORIZED"
	case apperr.KindForbidden:
		return "FORBIDDEN"
	case apperr.KindUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

// respondError maps a classified error to its stable HTTP shape.
// Unclassified errors are logged in full and masked for the caller.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Error().Str("path", c.Request.URL.Path).Err(err).Msg("request failed")
	}
	c.JSON(kind.HTTPStatus(), gin.H{
		"error": gin.H{"code": errorCode(kind), "message": apperr.Message(err)},
	})
}

// respondBindError reports a request-body binding failure.
func respondBindError(c *gin.Context, err error) {
	respondError(c, apperr.Wrap(apperr.KindBadRequest, "invalid request body", err))
}

// pathID parses the named int64 path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.KindBadRequest, "invalid %s", name)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
