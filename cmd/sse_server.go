package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cogniview/internal/utils/sse"
)

const sseHeartbeat = 60 * time.Second

func runSSE(ctx context.Context, logger *zap.Logger, addr string, hub *sse.Hub) error {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/sse/events", sseEventStream(hub))

	// streams end with ctx so shutdown does not wait on them
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	return serveHTTP(ctx, logger, "SSE", srv)
}

func writeEvent(c *gin.Context, v any) {
	if jsonData, err := json.Marshal(v); err == nil {
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(jsonData))
		c.Writer.Flush()
	}
}

// sseEventStream pushes recruiter notifications for one user until the client goes away.
func sseEventStream(hub *sse.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

		ch := make(chan sse.Notification, 10)
		hub.RegisterChannel(userID, ch)
		defer hub.UnregisterChannel(userID, ch)

		writeEvent(c, sse.Notification{
			"type":      "connection_established",
			"userId":    userID,
			"timestamp": time.Now().Unix(),
		})

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case <-heartbeat.C:
				writeEvent(c, sse.Notification{"type": "heartbeat", "timestamp": time.Now().Unix()})
			case notification := <-ch:
				writeEvent(c, notification)
			}
		}
	}
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, logger *zap.Logger, name string, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting "+name+" server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down " + name + " server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(name+" server shutdown error", zap.Error(err))
		return err
	}
	logger.Info(name + " server stopped")
	return nil
}
