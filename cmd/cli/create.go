package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/axellelanca/shortly/cmd"
	"github.com/axellelanca/shortly/internal/cache"
	"github.com/axellelanca/shortly/internal/config"
	"github.com/axellelanca/shortly/internal/repository"
	"github.com/axellelanca/shortly/internal/services"
)

var (
	targetURLFlag   string
	ownerFlag       string
	customAliasFlag string
)

// CreateCmd shortens a URL from the command line.
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a short link for a target URL.",
	Long: `Shortens the given URL and prints the allocated alias.

Example:
  shortly create --url="https://www.google.com/search?q=go+lang" --owner=cli`,
	Run: func(cobraCmd *cobra.Command, args []string) {
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
		// No cache backend from the CLI: every check goes to the store.
		existence := cache.NewExistence(nil, linkRepo, 0)
		linkService := services.NewLinkService(linkRepo, clickRepo, existence)

		link, err := linkService.CreateLink(context.Background(), targetURLFlag, ownerFlag, customAliasFlag)
		if err != nil {
			log.Fatalf("Failed to create short link: %v", err)
		}

		fmt.Printf("Short link created:\n")
		fmt.Printf("Alias: %s\n", link.ShortID)
		fmt.Printf("Full URL: %s/%s\n", cfg.Server.BaseURL, link.ShortID)
	},
}

func init() {
	CreateCmd.Flags().StringVar(&targetURLFlag, "url", "", "The target URL to shorten")
	CreateCmd.Flags().StringVar(&ownerFlag, "owner", "cli", "Owner id recorded on the link")
	CreateCmd.Flags().StringVar(&customAliasFlag, "alias", "", "Optional custom alias")
	CreateCmd.MarkFlagRequired("url")

	cmd.RootCmd.AddCommand(CreateCmd)
}
