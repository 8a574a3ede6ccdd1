package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck reports server health along with database and Redis reachability.
// Redis is optional; a nil client is reported as disabled.
func HealthCheck(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true

		if db == nil {
			checks["database"] = "disabled"
		} else if err := db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}

		if rdb == nil {
			checks["redis"] = "disabled"
		} else if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}

		status, code := "ok", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"service": "arena-api",
			"version": version,
			"uptime":  time.Since(startTime).String(),
			"checks":  checks,
		})
	}
}
