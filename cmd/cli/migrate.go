package cli

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/axellelanca/shortly/cmd"
	"github.com/axellelanca/shortly/internal/config"
	"github.com/axellelanca/shortly/internal/models"
)

// MigrateCmd creates or updates the database schema.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Creates or updates the links and clicks tables to match the current models.`,
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

		if err := db.AutoMigrate(&models.Link{}, &models.Click{}); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		fmt.Println("Database migration completed.")
	},
}

func init() {
	cmd.RootCmd.AddCommand(MigrateCmd)
}
