// Package handlers implements the control-plane HTTP endpoints.
package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/ProtonGraph/pkg/errors"
	"github.com/turtacn/ProtonGraph/pkg/types/common"
)

// respond writes a success envelope with the given status code.
func respond(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, common.APIResponse[interface{}]{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// respondError maps an application error to its HTTP status and writes an
// error envelope. Internal details are not masked: the control plane is an
// operator-facing surface.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	c.JSON(errors.HTTPStatusForCode(code), common.APIResponse[interface{}]{
		Success: false,
		Error: &common.ErrorDetail{
			Code:    code.String(),
			Message: err.Error(),
		},
		RequestID: requestID(c),
		Timestamp: time.Now().UTC(),
	})
}

func requestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Set("request_id", id)
	return id
}

// parsePagination extracts offset and limit query parameters.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset = 0
	limit = 20

	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	return offset, limit
}

// parseInt64Query reads an int64 query parameter with a default.
func parseInt64Query(c *gin.Context, name string, def int64) (int64, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Newf(errors.ErrCodeBadRequest, "invalid %s: %q", name, v)
	}
	return n, nil
}
