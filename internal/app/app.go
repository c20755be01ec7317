// Package app assembles the service: database, routes, background workers,
// and the HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fetchify-app/fetchify/internal/config"
	"github.com/fetchify-app/fetchify/internal/db"
	"github.com/fetchify-app/fetchify/internal/http/api/admin"
	"github.com/fetchify-app/fetchify/internal/http/api/extract"
	"github.com/fetchify-app/fetchify/internal/http/api/front"
	"github.com/fetchify-app/fetchify/internal/ledger"
	"github.com/fetchify-app/fetchify/internal/logging"
	"github.com/fetchify-app/fetchify/internal/mail"
	"github.com/fetchify-app/fetchify/internal/payments"
	"github.com/fetchify-app/fetchify/internal/util"
	"github.com/fetchify-app/fetchify/internal/zyte"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations plus catalog seeding.
func Migrate(cfg *config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// Run boots the API server and blocks until ctx is cancelled or the server
// fails.
func Run(ctx context.Context, cfg *config.Config) error {
	logging.Setup(cfg.Logging)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	client := zyte.NewClient(cfg.Extractor.Endpoint, cfg.Extractor.APIKey, cfg.Extractor.Timeout)
	paymentsSvc := payments.NewService(conn, cfg.Stripe, cfg.Server.FrontendURL)

	var mailer mail.Mailer
	if strings.TrimSpace(cfg.SMTP.Host) != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTP)
	} else {
		log.Warn("app: smtp host not configured, outbound mail disabled")
		mailer = mail.NopMailer{}
	}

	engine := newEngine()
	extract.RegisterRoutes(engine, extract.NewHandler(conn, client, cfg.RateLimit))
	front.RegisterFrontRoutes(engine, conn, cfg.JWT, mailer, paymentsSvc, cfg.Server.FrontendURL)
	admin.RegisterAdminRoutes(engine, conn, cfg.JWT)
	engine.GET("/healthz", healthHandler(conn))

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	ledger.NewRetentionSweeper(conn, cfg.Retention).Start(sweeperCtx)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("app: listening on %s", cfg.Server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	log.Info("app: shutting down")
	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	return <-errCh
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	return engine
}

// requestLogger logs each request with the query string masked so API keys
// passed as query parameters never reach the logs.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
			path += "?" + util.MaskSensitiveQuery(rawQuery)
		}
		log.WithFields(log.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    path,
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Info("request")
	}
}

func healthHandler(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, errDB := conn.DB()
		if errDB != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if errPing := sqlDB.PingContext(pingCtx); errPing != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
