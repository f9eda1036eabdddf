// Package server exposes a read-through store over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/goforj/tiercache"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// Fetcher is the read side of a tiercache.CacheBackedStore.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, id string) (T, error)
}

// New builds the router serving GET /items/:id from store.
func New[T any](store Fetcher[T]) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/items/:id", getItem(store))
	return router
}

func getItem[T any](store Fetcher[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		item, err := store.Fetch(c.Request.Context(), id)
		if err != nil {
			status, body := errorResponse(err)
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// errorResponse maps a fetch failure to a status and a body naming the tier
// and kind that failed.
func errorResponse(err error) (int, gin.H) {
	body := gin.H{"error": err.Error()}

	var le *tiercache.LocalError
	if errors.As(err, &le) {
		body["tier"] = tiercache.TierLocal
		body["kind"] = le.Kind.String()
		return http.StatusServiceUnavailable, body
	}

	var re *tiercache.RemoteError
	if errors.As(err, &re) {
		body["tier"] = tiercache.TierRemote
		body["kind"] = re.Kind.String()
		switch re.Kind {
		case tiercache.RemoteNotFound:
			return http.StatusNotFound, body
		case tiercache.RemoteTimeout:
			return http.StatusGatewayTimeout, body
		default:
			return http.StatusBadGateway, body
		}
	}
	return http.StatusInternalServerError, body
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if glog.V(1) {
			glog.Infof("%s %s %d %s request_id=%s",
				c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString(RequestIDHeader))
		}
	}
}
