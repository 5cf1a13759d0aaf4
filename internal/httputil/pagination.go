package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Bounds of the limit query parameter.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ParseLimit parses the limit query parameter, defaulting to DefaultLimit.
func ParseLimit(c *gin.Context) (int, error) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 || limit > MaxLimit {
		return 0, fmt.Errorf("invalid limit parameter: must be between 1 and %d", MaxLimit)
	}
	return limit, nil
}
