// @title Ship Buy-In API
// @version 1.0
// @description Buy-in evaluation service: markets, market segments, ships,
// @description lever gradients, fleet registry, catalogs, and schedules.
// @BasePath /
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/zhafen/ship/docs"
	"github.com/zhafen/ship/internal/buyin"
	"github.com/zhafen/ship/internal/cache"
	"github.com/zhafen/ship/internal/catalog"
	"github.com/zhafen/ship/internal/config"
	"github.com/zhafen/ship/internal/encoding"
	"github.com/zhafen/ship/internal/errors"
	"github.com/zhafen/ship/internal/fleet"
	"github.com/zhafen/ship/internal/middleware"
	"github.com/zhafen/ship/internal/monitoring"
	"github.com/zhafen/ship/internal/ratelimit"
	"github.com/zhafen/ship/internal/schedule"
	"github.com/zhafen/ship/internal/security"
	"github.com/zhafen/ship/internal/types"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logging setup
	appLogger := monitoring.NewLogger()
	slog.SetDefault(appLogger.Logger)
	appLogger.SetLevel(logLevel(cfg.LogLevel))

	gin.SetMode(cfg.GinMode)

	r, cleanup, err := setupRouter(cfg, appLogger)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "addr", cfg.Addr(), "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// setupRouter wires the full middleware chain and route table. The returned
// cleanup stops every background worker the router depends on.
func setupRouter(cfg config.Config, appLogger *monitoring.Logger) (*gin.Engine, func(), error) {
	// Default catalog: criteria, segments, markets
	cat, err := catalog.Default()
	if err != nil {
		return nil, nil, fmt.Errorf("load default catalog: %w", err)
	}

	// Two engines over the same bounds: the damped one scales every
	// derivative by (1 - X) and serves dt=true lever rankings.
	bounds := buyin.Bounds{
		QualityMin:   cfg.QualityMin,
		QualityMax:   cfg.QualityMax,
		FitMin:       cfg.FitMin,
		FitMax:       cfg.FitMax,
		CriterionMin: cfg.CriterionMin,
		CriterionMax: cfg.CriterionMax,
	}
	engineOpts := []buyin.Option{buyin.WithBounds(bounds)}
	if cfg.DiminishingReturns {
		engineOpts = append(engineOpts, buyin.WithDiminishingReturns())
	}
	engine := buyin.NewEngine(engineOpts...)
	dampedEngine := buyin.NewEngine(buyin.WithBounds(bounds), buyin.WithDiminishingReturns())

	// Fleet registry over the default catalog
	fleetService := fleet.NewService(cat, engine, fleet.WithRankingsTTL(cfg.RankingsTTL))

	// Warm up rankings cache and start auto-refresh
	go func() {
		slog.Info("Warming up rankings cache")
		fleetService.WarmRankings()
		fleetService.StartAutoRefresh(cfg.RankingsRefresh)
	}()

	// Initialize monitoring system
	appMetrics := monitoring.NewMetrics()

	memoryMonitor := monitoring.NewMemoryMonitor(cfg.MemoryMonitorInterval, cfg.GCThresholdMB*1024*1024, appLogger)
	memoryMonitor.Start()

	// Initialize pooled JSON codec
	jsonCodec := encoding.NewJSONCodec()

	// Initialize compression middleware
	compressionMiddleware := middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())

	// Rate limiting: redis-backed with in-memory fallback
	redisClient, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, continuing with in-memory rate limiting", "error", err)
	}
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:   cfg.IPRateLimitPerMin,
		BurstMultiplier: cfg.RateLimitBurst,
	}, appMetrics)

	// Security middleware setup
	securityConfig := security.DefaultSecurityConfig()
	securityConfig.MaxBodyBytes = int64(cfg.MaxInputLength)
	securityConfig.RequestTimeout = cfg.RequestTimeout
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)

	// Response cache for the stateless evaluation endpoints
	appCache := cache.NewCache(cfg.CacheTTL)

	r := gin.New()
	if err := r.SetTrustedProxies(securityConfig.TrustedProxies); err != nil {
		return nil, nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	r.Use(compressionMiddleware.Handler())
	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))
	r.Use(monitoring.SecurityMonitoringMiddleware(appLogger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())
	r.Use(security.SecurityHeadersMiddleware())
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.LimitBodySize)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Encoding", "Cache-Control"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(limiter.IPRateLimitMiddleware())
	r.Use(appCache.Middleware(appMetrics))

	serverStart := time.Now()

	respondError := func(c *gin.Context, err error) {
		appErr := errors.ToAppError(err)
		errors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"version":   version,
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(serverStart).String(),
			"metrics":   appMetrics.GetStats(),
		})
	})

	// Stateless evaluation over caller-supplied ships, defaulting to the
	// embedded catalog's markets.
	r.POST("/evaluate", func(c *gin.Context) {
		start := time.Now()

		var req types.EvaluateRequest
		if err := c.BindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
			return
		}
		if err := securityMiddleware.ValidateIdentifier(req.Ship.ID); err != nil {
			respondError(c, errors.NewValidationError(err.Error()))
			return
		}

		markets := req.Markets
		if len(markets) == 0 {
			markets = cat.Markets()
		}

		landscape, err := engine.Landscape(req.Ship, markets)
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementEvaluation()
		appLogger.EvaluationLogger(req.Ship.ID, landscape.BuyIn, landscape.Quality, time.Since(start), false)

		c.JSON(http.StatusOK, types.EvaluateResponse{
			EvaluationID: uuid.New().String(),
			Ship:         req.Ship.ID,
			Landscape:    landscape,
			GeneratedAt:  time.Now(),
		})
	})

	r.POST("/gradient", func(c *gin.Context) {
		var req types.GradientRequest
		if err := c.BindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
			return
		}

		kind, err := req.Lever.Parse()
		if err != nil {
			respondError(c, errors.NewValidationError(err.Error()))
			return
		}

		markets := req.Markets
		if len(markets) == 0 {
			markets = cat.Markets()
		}

		var derivative float64
		switch kind {
		case buyin.LeverQuality:
			derivative, err = engine.GradientQuality(req.Ship, markets)
		case buyin.LeverMarketFit:
			market, ok := findMarket(markets, req.Lever.Name)
			if !ok {
				respondError(c, errors.NewNotFoundError("unknown market "+strconv.Quote(req.Lever.Name), nil))
				return
			}
			derivative, err = engine.GradientMarketFit(req.Ship, market)
		case buyin.LeverSegmentFit:
			segment, ok := findSegment(markets, req.Lever.Name)
			if !ok {
				respondError(c, errors.NewNotFoundError("unknown segment "+strconv.Quote(req.Lever.Name), nil))
				return
			}
			derivative, err = engine.GradientSegmentFit(req.Ship, segment, markets)
		case buyin.LeverCriterion:
			derivative, err = engine.GradientCriterion(req.Ship, req.Lever.Name, markets)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementGradient()
		c.JSON(http.StatusOK, types.GradientResponse{
			Ship:       req.Ship.ID,
			Lever:      req.Lever,
			Derivative: derivative,
		})
	})

	r.POST("/levers/rank", func(c *gin.Context) {
		var req types.RankRequest
		if err := c.BindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
			return
		}

		markets := req.Markets
		if len(markets) == 0 {
			markets = cat.Markets()
		}

		// dt=true ranks by rate of change under dX/dt = 1 - X instead of
		// the raw derivative.
		eng := engine
		damped := cfg.DiminishingReturns
		if c.Query("dt") == "true" {
			eng = dampedEngine
			damped = true
		}

		levers, err := eng.RankLevers(req.Ship, markets)
		if err != nil {
			respondError(c, err)
			return
		}
		top, err := eng.TopLever(req.Ship, markets)
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementLeverRanking()
		c.JSON(http.StatusOK, types.RankResponse{
			Ship:               req.Ship.ID,
			Levers:             levers,
			Top:                top,
			DiminishingReturns: damped,
		})
	})

	// Fleet registry
	r.POST("/fleet/ships", func(c *gin.Context) {
		var req types.ConstructShipRequest
		if err := c.BindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
			return
		}
		if err := securityMiddleware.ValidateIdentifier(req.ID); err != nil {
			respondError(c, errors.NewValidationError(err.Error()))
			return
		}

		ship, err := fleetService.ConstructShip(fleet.ConstructParams{
			ID: req.ID,
			Attrs: buyin.Attrs{
				Name:        req.Name,
				Description: req.Description,
				Category:    req.Category,
			},
			ExtraCriteria: req.ExtraCriteria,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementFleetMutation()
		c.JSON(http.StatusCreated, ship)
	})

	r.GET("/fleet/ships", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ships": fleetService.Ships()})
	})

	r.GET("/fleet/ships/:id", func(c *gin.Context) {
		status, err := fleetService.Status(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	r.POST("/fleet/ships/:id/evaluate", func(c *gin.Context) {
		var req types.CriteriaRequest
		if err := c.BindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
			return
		}

		quality, err := fleetService.EvaluateShip(c.Param("id"), req.Criteria)
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementFleetMutation()
		c.JSON(http.StatusOK, gin.H{"ship_id": c.Param("id"), "quality": quality})
	})

	r.POST("/fleet/ships/:id/segments", func(c *gin.Context) {
		var req types.FitsRequest
		if err := c.BindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
			return
		}

		fits, err := fleetService.EvaluateMarketSegments(c.Param("id"), req.Fits)
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementFleetMutation()
		c.JSON(http.StatusOK, gin.H{"ship_id": c.Param("id"), "segment_fit": fits})
	})

	r.POST("/fleet/ships/:id/markets", func(c *gin.Context) {
		var req types.FitsRequest
		if err := c.BindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
			return
		}

		fits, err := fleetService.SendToMarket(c.Param("id"), req.Fits)
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementFleetMutation()
		c.JSON(http.StatusOK, gin.H{"ship_id": c.Param("id"), "market_fit": fits})
	})

	r.POST("/fleet/ships/:id/launch", func(c *gin.Context) {
		id := c.Param("id")
		if err := fleetService.LaunchShip(id, nil); err != nil {
			respondError(c, err)
			return
		}

		status, err := fleetService.Status(id)
		if err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementFleetMutation()
		c.JSON(http.StatusOK, status)
	})

	r.POST("/fleet/ships/:id/rename", func(c *gin.Context) {
		var req types.RenameRequest
		if err := c.BindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
			return
		}
		if err := securityMiddleware.ValidateIdentifier(req.NewID); err != nil {
			respondError(c, errors.NewValidationError(err.Error()))
			return
		}

		if err := fleetService.RenameShip(c.Param("id"), req.NewID); err != nil {
			respondError(c, err)
			return
		}

		appMetrics.IncrementFleetMutation()
		c.JSON(http.StatusOK, gin.H{"ship_id": req.NewID})
	})

	r.GET("/fleet/rankings", func(c *gin.Context) {
		limit := 50
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}
		c.JSON(http.StatusOK, fleetService.Rankings(limit))
	})

	r.GET("/fleet/rankings/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, fleetService.RankingsCacheStats())
	})

	r.GET("/fleet/changelog", func(c *gin.Context) {
		limit := 0
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
				limit = l
			}
		}
		c.JSON(http.StatusOK, gin.H{"records": fleetService.Changelog(limit)})
	})

	// Catalogs
	r.GET("/catalog/markets", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"markets": cat.Markets()})
	})

	r.GET("/catalog/segments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"segments": cat.Segments()})
	})

	r.GET("/catalog/criteria", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"criteria":       cat.Criteria(),
			"critical_value": cat.CriticalValue(),
		})
	})

	// CSV catalog import parses caller-supplied catalogs in the original
	// column layout and returns them as JSON. Kept on a tight per-endpoint
	// rate limit since parsing is unbounded caller input.
	r.POST("/catalog/import", limiter.EndpointRateLimitMiddleware("catalog_import", 10), func(c *gin.Context) {
		kind := c.Query("kind")

		switch kind {
		case "segments":
			segments, err := catalog.ParseSegmentsCSV(c.Request.Body)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"kind": kind, "count": len(segments), "segments": segments})
		case "markets":
			markets, err := catalog.ParseMarketsCSV(c.Request.Body)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"kind": kind, "count": len(markets), "markets": markets})
		default:
			respondError(c, errors.NewValidationError("kind must be \"segments\" or \"markets\""))
		}
	})

	// Schedules
	r.POST("/schedule/validate", func(c *gin.Context) {
		sched, ok := bindSchedule(c, respondError)
		if !ok {
			return
		}

		violations := sched.Validate()
		if violations == nil {
			violations = []string{}
		}
		c.JSON(http.StatusOK, types.ScheduleValidateResponse{
			Activity:   sched.Activity,
			Feasible:   len(violations) == 0,
			Violations: violations,
		})
	})

	r.POST("/schedule/profile", func(c *gin.Context) {
		var req types.ScheduleRequest
		if err := c.BindJSON(&req); err != nil {
			respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
			return
		}

		sched, err := req.Schedule()
		if err != nil {
			respondError(c, errors.NewValidationError(err.Error()))
			return
		}
		step, err := req.ProfileStep()
		if err != nil {
			respondError(c, errors.NewValidationError(err.Error()))
			return
		}

		profile := sched.Profile(step)
		points := make([]types.SchedulePoint, len(profile))
		for i, p := range profile {
			points[i] = types.SchedulePoint{Clock: p.Clock.String(), Priority: p.Priority}
		}
		c.JSON(http.StatusOK, types.ScheduleProfileResponse{
			Activity: sched.Activity,
			Points:   points,
		})
	})

	// Swagger documentation routes
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Operational endpoints
	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, appCache.Stats())
	})

	r.GET("/ratelimit/status", limiter.HandleRateLimitStatus())
	r.GET("/ratelimit/admin", limiter.HandleAdminRateLimits())
	r.GET("/ratelimit/metrics", limiter.HandleAdminRateLimitMetrics())
	r.POST("/ratelimit/invalidate/:ip", limiter.HandleAdminInvalidateIP())

	r.GET("/pools/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "json",
			"stats": jsonCodec.GetStats(),
		})
	})

	r.GET("/pools/compression", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "compression",
			"stats": compressionMiddleware.GetStats(),
		})
	})

	r.GET("/memory", func(c *gin.Context) {
		c.JSON(http.StatusOK, memoryMonitor.GetStats())
	})

	r.POST("/memory/optimize", func(c *gin.Context) {
		memoryMonitor.OptimizeMemory()
		c.JSON(http.StatusOK, gin.H{"message": "memory optimization triggered"})
	})

	// Performance profiling endpoints (development only)
	if cfg.EnableProfiling {
		slog.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/*filepath", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	}

	cleanup := func() {
		memoryMonitor.Stop()
		fleetService.Close()
		appCache.Close()
		limiter.Close()
		errors.SafeClose(redisClient, "redis client")
	}

	return r, cleanup, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// findMarket locates a market by ID in the evaluation set.
func findMarket(markets []buyin.Market, id string) (buyin.Market, bool) {
	for _, m := range markets {
		if m.ID == id {
			return m, true
		}
	}
	return buyin.Market{}, false
}

// findSegment locates a segment by ID across the evaluation markets.
func findSegment(markets []buyin.Market, id string) (buyin.Segment, bool) {
	for _, m := range markets {
		for _, mem := range m.Memberships {
			if mem.Segment.ID == id {
				return mem.Segment, true
			}
		}
	}
	return buyin.Segment{}, false
}

// bindSchedule parses and converts a schedule request body.
func bindSchedule(c *gin.Context, respondError func(*gin.Context, error)) (schedule.Schedule, bool) {
	var req types.ScheduleRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, errors.NewValidationError("invalid request body: "+err.Error()))
		return schedule.Schedule{}, false
	}

	sched, err := req.Schedule()
	if err != nil {
		respondError(c, errors.NewValidationError(err.Error()))
		return schedule.Schedule{}, false
	}
	return sched, true
}
