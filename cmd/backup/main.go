package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mathquest/internal/config"
	"mathquest/internal/repository"
	"mathquest/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "backup",
	Short: "Account store maintenance",
	Long:  "Export, import and migrate the accounts held by the math quest account store.",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		log.Println("Account store is up to date")
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every account to a JSON backup file",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath, _ := cmd.Flags().GetString("output")
		return runExport(cmd.Context(), outputPath)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Restore accounts from a JSON backup file",
	Long:  "Restore accounts from a JSON backup file. Accounts whose username already exists are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath, _ := cmd.Flags().GetString("input")
		return runImport(cmd.Context(), inputPath)
	},
}

func init() {
	exportCmd.Flags().String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	importCmd.Flags().String("input", "", "Input file path")
	importCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (repository.AccountStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}
	return store, nil
}

func runExport(ctx context.Context, outputPath string) error {
	// Generate default filename if not provided
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Printf("Exporting accounts to: %s", outputPath)
	if err := service.NewBackupService(store).ExportToFile(ctx, outputPath); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		log.Printf("Export complete! File size: %.2f KB", float64(info.Size())/1024)
	}
	return nil
}

func runImport(ctx context.Context, inputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file %s: %w", inputPath, err)
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := service.NewBackupService(store).ImportFromFile(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	log.Printf("Import complete! %d imported, %d skipped", stats.Imported, stats.Skipped)
	return nil
}
