package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/bmc-canvas-api/internal/database"
	"github.com/noah-isme/bmc-canvas-api/internal/models"
	"github.com/noah-isme/bmc-canvas-api/internal/repository"
	"github.com/noah-isme/bmc-canvas-api/pkg/ai"
)

func setupStore(t *testing.T) repository.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return repository.NewGormStore(db, "sqlite")
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func fullCanvas() map[string]string {
	blocks := make(map[string]string, len(ai.BlockKeys))
	for _, key := range ai.BlockKeys {
		blocks[key] = "short"
	}
	return blocks
}

type stubEvaluator struct {
	mu      sync.Mutex
	result  ai.RawResult
	err     error
	prompts []string
}

func (s *stubEvaluator) Evaluate(_ context.Context, prompt string) (ai.RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.result, s.err
}

// failingSubmissions wraps a repository and fails every write.
type failingSubmissions struct {
	repository.SubmissionRepository
}

var errStoreDown = errors.New("store unavailable")

func (failingSubmissions) Create(context.Context, *models.Submission) error {
	return errStoreDown
}
