//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/learnings/internal/api/handlers"
	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/jobs"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/cloo-solutions/learnings/internal/openai"
	"github.com/cloo-solutions/learnings/internal/repository"
	"github.com/cloo-solutions/learnings/internal/server"
	"github.com/cloo-solutions/learnings/internal/service"
	"github.com/cloo-solutions/learnings/internal/storage"
	"github.com/cloo-solutions/learnings/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	testOrgID  = "org-e2e"
	testUserID = "user-e2e"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	AI         *fakeAI
	Archive    *storage.S3Archive
	BinaryDir  string
	SpaceID    string
	HTTPClient *http.Client

	Standards       *repository.StandardRepository
	DistillJobs     *jobs.BatchJobProcessor
	EmbedJobs       *jobs.BatchJobProcessor
	EmbeddingWorker *jobs.EmbeddingWorker
}

// SetupE2EEnv creates a full E2E test environment with containers, a fake
// AI provider and the HTTP router
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	archive, err := storage.NewS3Archive(ctx, storage.S3ArchiveConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSCredential,
		SecretAccessKey: testutil.RustFSCredential,
		Bucket:          "test-reviews",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 archive: %v", err)
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	ai := newFakeAI()

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		AI:         ai,
		Archive:    archive,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.startServer()
	env.SpaceID = env.CreateSpace("Backend")

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.AI != nil {
		e.AI.server.Close()
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

// startServer wires repositories, services and handlers the way learningsd
// serve does
func (e *E2ETestEnv) startServer() {
	log := logger.NewNop()

	topicRepo := repository.NewTopicRepository(e.Pool)
	patchRepo := repository.NewKnowledgePatchRepository(e.Pool)
	spaces := repository.NewSpaceRepository(e.Pool)
	recipes := repository.NewRecipeRepository(e.Pool)
	ragLabRepo := repository.NewRagLabConfigRepository(e.Pool)
	embeddingJobs := repository.NewEmbeddingJobRepository(e.Pool)
	batchJobRepo := repository.NewBatchJobRepository(e.Pool)
	e.Standards = repository.NewStandardRepository(e.Pool)

	ai := openai.NewClientWithConfig(openai.Config{
		APIKey:     "test-key",
		BaseURL:    e.AI.server.URL + "/v1",
		MaxRetries: 1,
	}, log)

	topics := service.NewTopicService(topicRepo, log)
	embeddings := service.NewEmbeddingService(service.EmbeddingServiceDeps{
		AI:            ai,
		Standards:     e.Standards,
		Recipes:       recipes,
		Spaces:        spaces,
		RagLab:        ragLabRepo,
		EmbeddingJobs: embeddingJobs,
	}, log)
	applier := service.NewPatchApplier(e.Standards, embeddingJobs, log)
	patches := service.NewKnowledgePatchService(patchRepo, repository.NewTxRunner(e.Pool), applier, e.Archive, log)
	distiller := service.NewDistillationService(ai, e.Standards, recipes, topicRepo, patches, log)
	batchJobs := service.NewBatchJobService(batchJobRepo, topicRepo, embeddings, log)

	runner := jobs.NewBatchJobRunner(batchJobRepo, 2, log)
	e.DistillJobs = jobs.NewBatchJobProcessor(batchJobRepo, domain.BatchJobTypeDistillTopics, runner, jobs.NewDistillHandler(distiller), log)
	e.EmbedJobs = jobs.NewBatchJobProcessor(batchJobRepo, domain.BatchJobTypeEmbedArtifacts, runner, jobs.NewEmbedHandler(embeddings), log)
	e.EmbeddingWorker = jobs.NewEmbeddingWorker(embeddingJobs, embeddings, log)

	router := server.NewRouter(server.RouterConfig{
		Logger:        log,
		Spaces:        spaces,
		TopicHandler:  handlers.NewTopicHandler(topics, distiller, batchJobs),
		PatchHandler:  handlers.NewPatchHandler(patches),
		JobHandler:    handlers.NewJobHandler(batchJobs),
		SearchHandler: handlers.NewSearchHandler(embeddings),
		RagLabHandler: handlers.NewRagLabHandler(service.NewRagLabService(ragLabRepo), embeddings),
	})
	e.Server = httptest.NewServer(router)
}

// CreateSpace inserts a space of the test organization
func (e *E2ETestEnv) CreateSpace(name string) string {
	id := uuid.NewString()
	err := repository.NewSpaceRepository(e.Pool).Create(e.Ctx, &domain.Space{
		ID:             id,
		OrganizationID: testOrgID,
		Name:           name,
		Slug:           strings.ToLower(name) + "-" + id[:8],
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		e.T.Fatalf("failed to create space: %v", err)
	}
	return id
}

// CreateStandard inserts a standard with its first version
func (e *E2ETestEnv) CreateStandard(slug string, rules ...string) (*domain.Standard, *domain.StandardVersion) {
	now := time.Now().UTC()
	standard := &domain.Standard{
		ID:          uuid.NewString(),
		SpaceID:     e.SpaceID,
		Name:        "Standard " + slug,
		Slug:        slug,
		Description: "How we handle " + slug,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	version, err := e.Standards.CreateStandard(e.Ctx, standard, rules, testUserID)
	if err != nil {
		e.T.Fatalf("failed to create standard: %v", err)
	}
	return standard, version
}

// SpacePath returns the learnings API path of the test space
func (e *E2ETestEnv) SpacePath(suffix string) string {
	return fmt.Sprintf("/organizations/%s/spaces/%s/learnings%s", testOrgID, e.SpaceID, suffix)
}

// BuildCLI builds the learnings binary
func (e *E2ETestEnv) BuildCLI() {
	tmpDir, err := os.MkdirTemp("", "learnings-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "learnings"), "./cmd/learnings")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build learnings: %v\n%s", err, out)
	}
}

// RunCLI runs the learnings CLI against the test server and space
func (e *E2ETestEnv) RunCLI(stdin string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "learnings"), args...)
	cmd.Dir = e.BinaryDir
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(),
		"LEARNINGS_API_URL="+e.Server.URL,
		"LEARNINGS_USER_ID="+testUserID,
		"LEARNINGS_ORG_ID="+testOrgID,
		"LEARNINGS_SPACE_ID="+e.SpaceID,
		"XDG_CONFIG_HOME="+e.BinaryDir,
		"HOME="+e.BinaryDir,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Decode unmarshals the data envelope into out
func (r *APIResponse) Decode(t *testing.T, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Data, out); err != nil {
		t.Fatalf("failed to decode response data %s: %v", r.Data, err)
	}
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) *APIResponse {
	return e.Do(http.MethodGet, path, nil, testUserID)
}

// Post performs a POST request as the test user
func (e *E2ETestEnv) Post(path string, body interface{}) *APIResponse {
	return e.Do(http.MethodPost, path, body, testUserID)
}

// Do performs a request; an empty userID sends no identity header
func (e *E2ETestEnv) Do(method, path string, body interface{}, userID string) *APIResponse {
	e.T.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			e.T.Fatalf("failed to marshal body: %v", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.Server.URL+path, reqBody)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response: %v", err)
	}

	apiResp := &APIResponse{Status: resp.StatusCode}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			e.T.Fatalf("%s %s: unexpected body %q", method, path, respBody)
		}
	}
	return apiResp
}

// fakeAI answers chat completions and embeddings in the shape of the
// OpenAI API. Every embedding is the same unit vector.
type fakeAI struct {
	server      *httptest.Server
	completions atomic.Int32
	embeddings  atomic.Int32
}

var candidateIDPattern = regexp.MustCompile(`(?m)^([0-9a-f-]{36}) \|`)

func newFakeAI() *fakeAI {
	f := &fakeAI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", f.chat)
	mux.HandleFunc("/v1/embeddings", f.embed)
	f.server = httptest.NewServer(mux)
	return f
}

func (f *fakeAI) chat(w http.ResponseWriter, r *http.Request) {
	f.completions.Add(1)

	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	prompt := req.Messages[0].Content

	var answer interface{}
	switch {
	case strings.Contains(prompt, "Existing standards (id | name | summary)"):
		ids := []string{}
		for _, m := range candidateIDPattern.FindAllStringSubmatch(prompt, -1) {
			ids = append(ids, m[1])
		}
		answer = map[string][]string{"ids": ids}
	case strings.Contains(prompt, "Existing recipes"):
		answer = map[string][]string{"ids": {}}
	case strings.Contains(prompt, "changes a coding standard"):
		answer = map[string]string{"action": "addRule", "content": "Wrap errors with the failed operation", "rationale": "captured decision"}
	case strings.Contains(prompt, "No existing standard or recipe covers"):
		answer = map[string]interface{}{
			"createStandard": true,
			"standard": map[string]interface{}{
				"name":        "Error handling",
				"description": "How errors are reported",
				"rules":       []string{"Wrap errors with the failed operation"},
			},
			"rationale": "new area",
		}
	default:
		answer = map[string]string{}
	}

	content, _ := json.Marshal(answer)
	writeJSON(w, map[string]interface{}{
		"id":      "chatcmpl-e2e",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "fake",
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": string(content)},
			"finish_reason": "stop",
		}},
	})
}

func (f *fakeAI) embed(w http.ResponseWriter, r *http.Request) {
	f.embeddings.Add(1)

	var req struct {
		Dimensions int `json:"dimensions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Dimensions <= 0 {
		http.Error(w, "dimensions required", http.StatusBadRequest)
		return
	}
	vector := make([]float32, req.Dimensions)
	vector[0] = 1

	writeJSON(w, map[string]interface{}{
		"object": "list",
		"model":  "fake",
		"data": []map[string]interface{}{{
			"object":    "embedding",
			"index":     0,
			"embedding": vector,
		}},
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
