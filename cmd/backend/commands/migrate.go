package commands

import (
	"fmt"

	"github.com/biodoia/nutrillm/pkg/database"
	"github.com/biodoia/nutrillm/pkg/models"
	"github.com/spf13/cobra"
)

// MigrateCmd rappresenta il comando migrate
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the memory database schema",
	Long: `Manage the schema of the conversation memory database.

The gateway migrates on startup as well; these commands are useful to
prepare a database ahead of time or to wipe stored conversations.`,
	Example: `  # Create or update tables
  nutrillm migrate up

  # Drop and recreate all tables
  nutrillm migrate reset --confirm`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or update tables",
	RunE:  runMigrateUp,
}

var migrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate all tables",
	Long:  `Drop conversation history and profiles, then recreate the schema. Requires --confirm.`,
	RunE:  runMigrateReset,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tables and row counts",
	RunE:  runMigrateStatus,
}

var migrateConfirm bool

func init() {
	migrateResetCmd.Flags().BoolVar(&migrateConfirm, "confirm", false, "Confirm reset action")

	MigrateCmd.AddCommand(migrateUpCmd)
	MigrateCmd.AddCommand(migrateResetCmd)
	MigrateCmd.AddCommand(migrateStatusCmd)
}

func initDB(cmd *cobra.Command) (*database.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Running database migrations...")

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("✓ Migrations completed successfully")
	return nil
}

func runMigrateReset(cmd *cobra.Command, args []string) error {
	if !migrateConfirm {
		return fmt.Errorf("reset requires --confirm flag to proceed")
	}

	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("⚠️  Dropping all tables...")

	if err := db.Migrator().DropTable(&models.ConversationTurn{}, &models.Profile{}); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("✓ Database reset completed")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	tables := []struct {
		name  string
		model any
	}{
		{"user_memory", &models.ConversationTurn{}},
		{"profiles", &models.Profile{}},
	}

	fmt.Println("Database Status:")
	for _, t := range tables {
		if !db.Migrator().HasTable(t.model) {
			fmt.Printf("  ✗ %-12s missing\n", t.name)
			continue
		}
		var count int64
		if err := db.Model(t.model).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count %s: %w", t.name, err)
		}
		fmt.Printf("  ✓ %-12s %d rows\n", t.name, count)
	}
	return nil
}
