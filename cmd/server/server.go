package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/axellelanca/shortly/cmd"
	"github.com/axellelanca/shortly/internal/api"
	"github.com/axellelanca/shortly/internal/cache"
	"github.com/axellelanca/shortly/internal/config"
	"github.com/axellelanca/shortly/internal/identity"
	"github.com/axellelanca/shortly/internal/models"
	"github.com/axellelanca/shortly/internal/monitor"
	"github.com/axellelanca/shortly/internal/ratelimit"
	"github.com/axellelanca/shortly/internal/repository"
	"github.com/axellelanca/shortly/internal/services"
	"github.com/axellelanca/shortly/internal/workers"
)

// RunServerCmd starts the HTTP server together with the click workers and
// the URL monitor.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Start the URL shortener API server and background processes.",
	Long: `Initializes the database, the Redis cache and rate limiter,
starts the asynchronous click workers and the URL monitor,
then serves the HTTP API.`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{TranslateError: true})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		if err := db.AutoMigrate(&models.Link{}, &models.Click{}); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		linkRepo := repository.NewLinkRepository(db)
		clickRepo := repository.NewClickRepository(db)
		log.Println("Repositories initialized.")

		limits := rateLimits(cfg)

		// Redis backs both the existence cache and the rate limiter. Without
		// it the cache layer degrades to store-only queries and the limiter
		// runs in process.
		var (
			backend cache.Backend
			limiter ratelimit.Limiter
		)
		if cfg.Redis.Enabled {
			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				log.Printf("WARNING: Redis unreachable (%v), running without cache", err)
				limiter = ratelimit.NewMemoryLimiter(limits)
			} else {
				backend = cache.NewRedisBackend(redisClient)
				limiter = ratelimit.NewRedisLimiter(redisClient, limits)
				log.Printf("Redis connected at %s.", cfg.Redis.Addr)
			}
		} else {
			limiter = ratelimit.NewMemoryLimiter(limits)
		}

		existence := cache.NewExistence(backend, linkRepo, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		linkService := services.NewLinkService(linkRepo, clickRepo, existence)
		log.Println("Business services initialized.")

		clickEventsChan := make(chan models.ClickEvent, cfg.Analytics.BufferSize)
		api.ClickEventsChannel = clickEventsChan
		workers.StartClickWorkers(cfg.Analytics.WorkerCount, clickEventsChan, clickRepo)
		log.Printf("Click event channel initialized with a buffer of %d. %d worker(s) started.",
			cfg.Analytics.BufferSize, cfg.Analytics.WorkerCount)

		monitorCtx, cancelMonitor := context.WithCancel(context.Background())
		monitorInterval := time.Duration(cfg.Monitor.IntervalMinutes) * time.Minute
		urlMonitor := monitor.NewUrlMonitor(linkRepo, monitorInterval)
		go urlMonitor.Start(monitorCtx)
		log.Printf("URL monitor started with an interval of %v.", monitorInterval)

		router := gin.Default()
		api.SetupRoutes(router, api.Deps{
			LinkService: linkService,
			Limiter:     limiter,
			Identity:    identity.NewHeaderProvider(cfg.Admin.APIToken),
			BaseURL:     cfg.Server.BaseURL,
			BufferSize:  cfg.Analytics.BufferSize,
		})
		log.Println("API routes configured.")

		serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:    serverAddr,
			Handler: router,
		}

		go func() {
			log.Printf("Starting server on %s", serverAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutdown signal received. Stopping server...")

		cancelMonitor()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		// Closing the channel lets the workers drain the buffer and exit.
		close(clickEventsChan)
		time.Sleep(1 * time.Second)

		log.Println("Server stopped cleanly.")
	},
}

func rateLimits(cfg *config.Config) ratelimit.Limits {
	return ratelimit.Limits{
		ratelimit.TierGeneral:  cfg.RateLimit.General,
		ratelimit.TierShorten:  cfg.RateLimit.Shorten,
		ratelimit.TierRedirect: cfg.RateLimit.Redirect,
		ratelimit.TierSearch:   cfg.RateLimit.Search,
		ratelimit.TierAdmin:    cfg.RateLimit.Admin,
	}
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}
