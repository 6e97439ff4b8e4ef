//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/panjf2000/ants/v2"

	"github.com/clio-labs/chronotex/internal/api/handlers"
	"github.com/clio-labs/chronotex/internal/config"
	"github.com/clio-labs/chronotex/internal/domain"
	"github.com/clio-labs/chronotex/internal/jobs"
	"github.com/clio-labs/chronotex/internal/llm"
	"github.com/clio-labs/chronotex/internal/repository"
	"github.com/clio-labs/chronotex/internal/rerank"
	"github.com/clio-labs/chronotex/internal/search"
	"github.com/clio-labs/chronotex/internal/server"
	"github.com/clio-labs/chronotex/internal/service"
	"github.com/clio-labs/chronotex/internal/storage"
	"github.com/clio-labs/chronotex/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Sweeper      *jobs.ExportSweeper
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and an
// in-process server. The LLM endpoint and the query embedder are stubbed;
// everything else is real.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-exports",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, sweeper := startServer(t, pool, s3Client, s3C.Endpoint(), port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		Sweeper:      sweeper,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// SeedChunk inserts one archive chunk with a deterministic embedding. The
// stub embedder always returns the axis-0 unit direction, so weight on
// axis 0 controls the chunk's vector score.
func (e *E2ETestEnv) SeedChunk(title, content, tags string, year int, weight float32) string {
	repo := repository.NewArchiveRepository(e.Pool)
	id := uuid.NewString()
	err := repo.Insert(e.Ctx, &repository.ArchiveChunk{
		ID:        id,
		Title:     title,
		Summary:   "summary of " + title,
		Content:   content,
		Tags:      tags,
		Year:      year,
		ChunkSize: 2000,
		Embedding: axisEmbedding(0, weight),
	})
	if err != nil {
		e.T.Fatalf("failed to seed chunk: %v", err)
	}
	return id
}

func axisEmbedding(axis int, weight float32) []float32 {
	vec := make([]float32, 1536)
	for i := range vec {
		vec[i] = 0.001
	}
	vec[axis] = weight
	return vec
}

// BuildBinaries builds the chronotex and chronotexd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "chronotex-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "chronotexd"), "./cmd/chronotexd")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build chronotexd: %v\n%s", err, out)
	}

	cmd = exec.Command("go", "build", "-o", filepath.Join(tmpDir, "chronotex"), "./cmd/chronotex")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build chronotex: %v\n%s", err, out)
	}
}

// RunChronotex runs the chronotex CLI against the test server
func (e *E2ETestEnv) RunChronotex(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "chronotex"), args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("CHRONOTEX_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// GetRaw performs a GET request and returns the raw body and status code
func (e *E2ETestEnv) GetRaw(path string) ([]byte, int, error) {
	resp, err := e.HTTPClient.Get(e.ServerURL + path)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// DownloadFile downloads a file from the presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func testConfig() *config.Config {
	return &config.Config{
		CorpusStartYear:  1948,
		CorpusEndYear:    1979,
		DefaultTopK:      10,
		MaxTopK:          100,
		MaxWindowSize:    50,
		WindowTimeout:    10 * time.Second,
		AvailableLengths: []int{500, 2000, 3000},
		DefaultModel:     "gpt-4o",
		RerankModel:      "gpt-4o-mini",
		LLMConcurrency:   4,
		ExportRetention:  time.Hour,
	}
}

// startServer wires the full HTTP stack with a stubbed LLM and embedder
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, s3Endpoint string, port int) (string, func(), *jobs.ExportSweeper) {
	cfg := testConfig()
	cfg.S3Endpoint = s3Endpoint
	cfg.S3AccessKey = "rustfsadmin"
	cfg.S3SecretKey = "rustfsadmin"
	cfg.S3Bucket = "test-exports"

	archiveRepo := repository.NewArchiveRepository(pool)
	exportRepo := repository.NewExportRepository(pool)

	orchestrator := search.NewOrchestrator(archiveRepo, &stubEmbedder{})

	llmPool, err := ants.NewPool(cfg.LLMConcurrency)
	if err != nil {
		t.Fatalf("failed to create LLM pool: %v", err)
	}

	llmClient := &stubLLMClient{}
	reranker := rerank.NewReranker(llmClient, llmPool)

	searchSvc := service.NewSearchService(orchestrator, reranker, nil, cfg)
	analysisSvc := service.NewAnalysisService(llmClient, cfg)
	keywordSvc := service.NewKeywordService(nil)
	exportSvc := service.NewExportService(exportRepo, s3Client, cfg.ExportRetention)
	settingsSvc := service.NewSettingsService(cfg)

	sweeper := jobs.NewExportSweeper(exportRepo, s3Client)

	router := server.NewRouter(server.RouterConfig{
		SearchHandler:   handlers.NewSearchHandler(searchSvc),
		AnalyzeHandler:  handlers.NewAnalyzeHandler(analysisSvc),
		KeywordHandler:  handlers.NewKeywordHandler(keywordSvc),
		ExportHandler:   handlers.NewExportHandler(exportSvc),
		SettingsHandler: handlers.NewSettingsHandler(settingsSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		llmPool.Release()
	}, sweeper
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// stubEmbedder always embeds along axis 0, so seeded chunks with axis-0
// weight dominate similarity.
type stubEmbedder struct{}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return axisEmbedding(0, 1.0), nil
}

// stubLLMClient answers scoring prompts with a fixed relevance score and
// analysis prompts with a citing answer.
type stubLLMClient struct{}

func (s *stubLLMClient) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	if strings.Contains(req.SystemPrompt, "relevance") {
		return &llm.GenerateResult{
			Text:  "8\nDirectly discusses the research question.",
			Usage: domain.TokenUsage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60},
		}, nil
	}
	return &llm.GenerateResult{
		Text:      "The coverage shifted notably over the period [1].",
		Reasoning: "Comparing the passages by year.",
		Usage:     domain.TokenUsage{PromptTokens: 200, CompletionTokens: 40, TotalTokens: 240},
	}, nil
}

func (s *stubLLMClient) GenerateStream(ctx context.Context, req llm.GenerateRequest) (<-chan llm.Event, error) {
	events := make(chan llm.Event, 16)
	go func() {
		defer close(events)
		events <- llm.Event{Kind: llm.EventReasoningDelta, Text: "Comparing the passages."}
		events <- llm.Event{Kind: llm.EventReasoningDone, Text: "Comparing the passages."}
		events <- llm.Event{Kind: llm.EventOutputDelta, Text: "The coverage shifted "}
		events <- llm.Event{Kind: llm.EventOutputDelta, Text: "notably [1]."}
		events <- llm.Event{Kind: llm.EventOutputDone, Text: "The coverage shifted notably [1]."}
		events <- llm.Event{Kind: llm.EventCompleted, Usage: &domain.TokenUsage{TotalTokens: 240}}
	}()
	return events, nil
}
