package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/clio-labs/chronotex/internal/config"
	"github.com/clio-labs/chronotex/internal/database"
	"github.com/clio-labs/chronotex/internal/jobs"
	"github.com/clio-labs/chronotex/internal/repository"
	"github.com/clio-labs/chronotex/internal/storage"
)

// SweepCmd returns the sweep command
func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired export artifacts",
		Long:  "Runs one export retention sweep immediately instead of waiting for the server's background interval.",
		RunE:  runSweep,
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	var objects jobs.ArtifactStore
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		objects = s3Client
	}

	sweeper := jobs.NewExportSweeper(repository.NewExportRepository(pool), objects)
	if err := sweeper.ProcessJobs(ctx); err != nil {
		return err
	}

	log.Println("sweep complete")
	return nil
}
