package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clio-labs/chronotex/internal/config"
	"github.com/clio-labs/chronotex/internal/database"
	"github.com/clio-labs/chronotex/internal/openai"
	"github.com/clio-labs/chronotex/internal/repository"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl>",
		Short: "Ingest archive chunks",
		Long:  "Reads pre-chunked archive records from a JSONL file, embeds each chunk, and writes it into the corpus.",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().Int("chunk-size", 2000, "Nominal chunk length of the input records")

	return cmd
}

// ingestRecord is one JSONL line of the ingest input
type ingestRecord struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Text    string   `json:"text"`
	Tags    []string `json:"tags"`
	Year    int      `json:"year"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	chunkSize, _ := cmd.Flags().GetInt("chunk-size")

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	archiveRepo := repository.NewArchiveRepository(pool)
	embedClient := openai.NewClientWithConfig(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	line, inserted := 0, 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec ingestRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Text == "" {
			return fmt.Errorf("line %d: text is required", line)
		}
		if rec.Year < cfg.CorpusStartYear || rec.Year > cfg.CorpusEndYear {
			return fmt.Errorf("line %d: year %d outside corpus %d-%d",
				line, rec.Year, cfg.CorpusStartYear, cfg.CorpusEndYear)
		}

		embedding, err := embedClient.GenerateEmbedding(ctx, rec.Text)
		if err != nil {
			return fmt.Errorf("line %d: embedding failed: %w", line, err)
		}

		err = archiveRepo.Insert(ctx, &repository.ArchiveChunk{
			ID:        uuid.NewString(),
			Title:     rec.Title,
			Summary:   rec.Summary,
			Content:   rec.Text,
			Tags:      strings.Join(rec.Tags, " "),
			Year:      rec.Year,
			ChunkSize: chunkSize,
			Embedding: embedding,
		})
		if err != nil {
			return fmt.Errorf("line %d: insert failed: %w", line, err)
		}

		inserted++
		if inserted%100 == 0 {
			log.Printf("ingested %d chunks", inserted)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	log.Printf("done, ingested %d chunks", inserted)
	return nil
}
