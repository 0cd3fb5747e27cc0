package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/axellelanca/shortly/cmd"
	"github.com/axellelanca/shortly/internal/cache"
	"github.com/axellelanca/shortly/internal/config"
)

// CacheStatsCmd inspects the existence cache keyspace directly in Redis.
var CacheStatsCmd = &cobra.Command{
	Use:   "cache-stats",
	Short: "Show existence cache statistics",
	Long:  `Connects to Redis and reports how many existence entries are currently cached.`,
	Run: func(cobraCmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		if !cfg.Redis.Enabled {
			fmt.Println("Redis is disabled in the configuration; no cache to inspect.")
			return
		}

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		backend := cache.NewRedisBackend(client)
		keys, err := backend.KeysWithPrefix(context.Background(), cache.KeyPrefix)
		if err != nil {
			log.Fatalf("Failed to read cache keys: %v", err)
		}

		fmt.Printf("Key prefix: %s\n", cache.KeyPrefix)
		fmt.Printf("Total keys: %d\n", len(keys))
	},
}

func init() {
	cmd.RootCmd.AddCommand(CacheStatsCmd)
}
