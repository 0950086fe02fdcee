package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"panol-backend/internal/alerts"
	"panol-backend/internal/lending"
	"panol-backend/internal/platform/auth"
	"panol-backend/internal/platform/db"
	"panol-backend/internal/platform/middleware"
	"panol-backend/internal/product"
	"panol-backend/internal/users"
)

func main() {
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	var logger *zap.Logger
	if cfg.Mode == "dev" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	logger.Info("starting", zap.String("mode", cfg.Mode), zap.String("version", cfg.Version))

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer conn.Close()
	logger.Info("connected to DB", zap.String("dbname", cfg.DB.DBName))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logger), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		// CORS, only needed while the frontend runs on its own dev server
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:4200"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	authSvc := auth.NewService(auth.NewStore(conn), []byte(cfg.JWT.Secret), time.Duration(cfg.JWT.TTLHours)*time.Hour)
	alertSvc := alerts.NewService(conn, logger)

	auth.RegisterRoutes(r.Group("/auth"), authSvc)
	users.RegisterRoutes(r.Group("/users"), users.NewService(conn, logger))
	product.RegisterRoutes(r.Group("/product"), product.NewService(conn, logger))
	lending.RegisterRoutes(r.Group("/lending"), lending.NewService(conn, logger))
	alerts.RegisterRoutes(r.Group("/alerts"), alertSvc)

	// daily summary alert, replaces the old client-side polling
	schedCtx, schedCancel := context.WithCancel(context.Background())
	sched := alerts.NewScheduler(alertSvc, cfg.Alerts.Hour, logger)
	go sched.Run(schedCtx)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Info("shutting down")
	schedCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("shutdown failed", zap.Error(err))
	}
}
