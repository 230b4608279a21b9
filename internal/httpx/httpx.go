// Package httpx holds the small request/response helpers shared by the
// JSON handlers of every service.
package httpx

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	svcErr "github.com/oggyb/swipelingo/internal/errors"
)

// WriteError answers with the status and envelope for err.
func WriteError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(svcErr.HTTPStatus(err), svcErr.ToBody(err))
}

// BindJSON decodes the request body into dst. Decoding failures are
// validation errors of op.
func BindJSON(c *gin.Context, op string, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return svcErr.Validation(op, "invalid request body: "+err.Error())
	}
	return nil
}

// Uint64Query reads a required positive id from the query string.
func Uint64Query(c *gin.Context, op, name string) (uint64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, svcErr.Validation(op, name+" is required")
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, svcErr.Validation(op, name+" must be a positive integer")
	}
	return v, nil
}

// Uint64Param reads a positive id from the route path.
func Uint64Param(c *gin.Context, op, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, svcErr.Validation(op, name+" must be a positive integer")
	}
	return v, nil
}

// IntQuery reads an optional integer; absent means def.
func IntQuery(c *gin.Context, op, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, svcErr.Validation(op, name+" must be an integer")
	}
	return v, nil
}

// ListQuery splits a comma separated query value, dropping blanks.
func ListQuery(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
