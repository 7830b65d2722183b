package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/talentscout/backend/internal/config"
)

func setRunEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LLM_PROVIDER", "LLM_MODEL", "GROQ_API_KEY", "GROQ_BASE_URL", "AI_MAX_TOKENS",
		"AI_TIMEOUT", "STORE_BACKEND", "DATABASE_URL", "S3_BUCKET", "RABBITMQ_URL",
		"PROMPTS_FILE", "PROMPTS_WATCH", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "candidate_data.json"))
	t.Setenv("LOG_FORMAT", "json")
}

func TestRunReportsCredentialHint(t *testing.T) {
	setRunEnv(t)

	err := Run(context.Background(), "127.0.0.1:0")
	require.ErrorIs(t, err, config.ErrMissingCredential)
	assert.Equal(t,
		"LLM initialization failed. Make sure GROQ_API_KEY is set in your environment or .env file.",
		err.Error())
}

func TestRunServesUntilCancel(t *testing.T) {
	setRunEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, "127.0.0.1:0", WithResponder(staticResponder{})) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsInvalidConfiguration(t *testing.T) {
	setRunEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	err := Run(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
