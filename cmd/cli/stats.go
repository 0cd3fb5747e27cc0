package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/axellelanca/shortly/cmd"
	"github.com/axellelanca/shortly/internal/cache"
	"github.com/axellelanca/shortly/internal/config"
	apperrors "github.com/axellelanca/shortly/internal/errors"
	"github.com/axellelanca/shortly/internal/repository"
	"github.com/axellelanca/shortly/internal/services"
)

// StatsCmd prints click statistics for an alias or link id.
var StatsCmd = &cobra.Command{
	Use:   "stats [alias-or-id]",
	Short: "Get statistics for a short link",
	Long:  `Prints click statistics for the link addressed by its alias or internal id.`,
	Args:  cobra.ExactArgs(1),
	Run:   runStats,
}

func init() {
	cmd.RootCmd.AddCommand(StatsCmd)
}

func runStats(cobraCmd *cobra.Command, args []string) {
	key := args[0]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to obtain underlying SQL database: %v", err)
	}
	defer sqlDB.Close()

	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	existence := cache.NewExistence(nil, linkRepo, 0)
	linkService := services.NewLinkService(linkRepo, clickRepo, existence)

	link, recorded, err := linkService.GetLinkStats(context.Background(), key)
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			log.Fatalf("Link %q not found", key)
		}
		log.Fatalf("Failed to get link stats: %v", err)
	}

	fmt.Printf("Alias: %s\n", link.ShortID)
	fmt.Printf("Target URL: %s\n", link.TargetURL)
	fmt.Printf("Status: %s\n", link.Status)
	fmt.Printf("Total clicks: %d\n", link.Clicks)
	fmt.Printf("Recorded click rows: %d\n", recorded)
}
