package bootstrap

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/agent-platform/internal/agent"
	"github.com/suPer8Hu/agent-platform/internal/ai"
	"github.com/suPer8Hu/agent-platform/internal/config"
)

func TestProviderRegistry(t *testing.T) {
	cfg := config.Config{OllamaBaseURL: "http://localhost:11434", OllamaModel: "llama3", GeminiModel: "flash"}
	reg := ProviderRegistry(cfg)
	require.ElementsMatch(t, []string{"ollama", "openrouter", "gemini"}, reg.Names())

	res, err := reg.Open(context.Background(), "ollama", "")
	require.NoError(t, err)
	require.IsType(t, &ai.OllamaProvider{}, res.Provider)
	require.Equal(t, "llama3", res.Model)

	_, err = reg.Open(context.Background(), "openrouter", "auto")
	require.ErrorContains(t, err, "OPENROUTER_API_KEY")

	_, err = reg.Open(context.Background(), "gemini", "")
	require.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestNew_InMemory(t *testing.T) {
	cfg := config.Config{
		DBDriver:         "sqlite",
		DBDSN:            "file:bootstrap_test?mode=memory&cache=shared",
		AIProvider:       "ollama",
		OllamaBaseURL:    "http://127.0.0.1:1",
		OllamaModel:      "llama3",
		DefaultAgentType: "bank_support",
		RabbitURL:        "amqp://unused",
	}
	app, err := New(context.Background(), cfg, zerolog.Nop(), false)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close()) })

	require.NotNil(t, app.Chat)
	require.Nil(t, app.Publisher)
	require.False(t, app.Chat.AsyncJobsEnabled())
	require.True(t, app.DB.Migrator().HasTable("threads"))
	require.True(t, app.DB.Migrator().HasTable("messages"))
	require.True(t, app.DB.Migrator().HasTable("agent_jobs"))
}

func TestNew_RejectsUnknownDefaultAgent(t *testing.T) {
	for _, kind := range []string{"travel_agent", ""} {
		cfg := config.Config{
			DBDriver:         "sqlite",
			DBDSN:            "file:bootstrap_bad_agent?mode=memory&cache=shared",
			AIProvider:       "ollama",
			OllamaBaseURL:    "http://127.0.0.1:1",
			DefaultAgentType: kind,
		}
		_, err := New(context.Background(), cfg, zerolog.Nop(), false)
		require.ErrorContains(t, err, "DEFAULT_AGENT_TYPE")
		require.ErrorIs(t, err, agent.ErrUnknownKind)
	}

	cfg := config.Config{
		DBDriver:         "SQLite",
		DBDSN:            "file:bootstrap_upper_agent?mode=memory&cache=shared",
		AIProvider:       "ollama",
		OllamaBaseURL:    "http://127.0.0.1:1",
		DefaultAgentType: " Bank_Support ",
	}
	app, err := New(context.Background(), cfg, zerolog.Nop(), false)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close()) })
}
