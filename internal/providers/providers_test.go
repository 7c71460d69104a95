package providers

import (
	"io"
	"testing"
	"time"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/logging"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/store"
	"github.com/linkhub/linkhub/internal/syncengine"
	"github.com/linkhub/linkhub/internal/tokenstore"
)

type testEnv struct {
	deps   Deps
	store  *store.MemoryStore
	tokens *tokenstore.MemoryStore
	states *statetoken.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	tokens := tokenstore.NewMemoryStore()
	logger := logging.NewLogger(logging.WithLevel(logging.LevelError), logging.WithOutput(io.Discard))
	return &testEnv{
		deps: Deps{
			Store:       st,
			Tokens:      tokens,
			Engine:      syncengine.NewEngine(st, logger),
			Logger:      logger,
			HTTPTimeout: 5 * time.Second,
			PageCap:     5,
		},
		store:  st,
		tokens: tokens,
		states: statetoken.New("test-secret"),
	}
}

func deviceConfig() config.ProviderConfig {
	return config.ProviderConfig{WindowDays: 30}
}
