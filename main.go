package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/pocketwise/server/internal/agent/graph"
	"github.com/pocketwise/server/internal/agent/model"
	"github.com/pocketwise/server/internal/agent/repo"
	"github.com/pocketwise/server/internal/agent/store"
	"github.com/pocketwise/server/internal/core"
	"github.com/pocketwise/server/internal/server"
	logx "github.com/pocketwise/server/pkg/logger"
	pkgredis "github.com/pocketwise/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the engine, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis   pkgredis.Config
	Storage model.StorageConfig
	Server  model.ServerConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Intent       model.IntentModelConfig
	Chat         model.ChatResponseModelConfig
	Plan         model.PlanModelConfig
	Conversation model.ConversationConfig
	PlanAgent    model.PlanAgentConfig
}

func main() {
	serve := flag.Bool("serve", false, "run the HTTP server instead of the interactive console")
	flag.Parse()

	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Environment)})

	stateStore, cleanup, err := buildStateStore(envCfg)
	if err != nil {
		log.Fatalf("Failed to initialise state store: %v", err)
	}
	defer cleanup()

	storage, err := store.Open(envCfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open storage at %s: %v", envCfg.Storage.Path, err)
	}
	defer storage.Close()

	runner, err := graph.BuildConversationGraph(ctx, graph.Config{
		APIKey:       envCfg.APIKey,
		BaseURL:      envCfg.BaseURL,
		IntentModel:  envCfg.Intent,
		ChatModel:    envCfg.Chat,
		PlanModel:    envCfg.Plan,
		Conversation: envCfg.Conversation,
		PlanAgent:    envCfg.PlanAgent,
		StateStore:   stateStore,
		Storage:      storage,
	})
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	if *serve {
		srv := server.New(runner, stateStore)
		if err := srv.Listen(envCfg.Server.Addr); err != nil {
			log.Fatalf("HTTP server stopped: %v", err)
		}
		return
	}

	runConsole(ctx, runner)
}

// buildStateStore picks Redis when a URL is configured and falls back to
// the in-process store otherwise.
func buildStateStore(cfg AppConfig) (model.StateStore, func(), error) {
	if cfg.Redis.URL == "" {
		logx.Info().Msg("No REDIS_URL configured, using in-memory state store")
		return repo.NewMemoryStateStore(), func() {}, nil
	}

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", cfg.Conversation.TTL, err)
	}

	rdb, err := cfg.Redis.New()
	if err != nil {
		return nil, nil, err
	}
	logx.Info().Msg("Connected to Redis")
	return repo.NewRedisStateStore(rdb, ttl), func() { rdb.Close() }, nil
}

// runConsole drives a small interactive loop on stdin.
func runConsole(ctx context.Context, runner graph.Runner) {
	fmt.Println("Welcome to PocketWise - Your Personal Finance Companion")

	reader := bufio.NewScanner(os.Stdin)

	fmt.Print("Enter your User ID (or press Enter for 'student_01'): ")
	userID := "student_01"
	if reader.Scan() {
		if v := strings.TrimSpace(reader.Text()); v != "" {
			userID = v
		}
	}
	threadID := "console:" + userID

	fmt.Printf("Logged in as: %s\n", userID)
	fmt.Println("Type 'exit' or 'quit' to stop.")
	fmt.Println(strings.Repeat("-", 50))

	for {
		fmt.Print("\nYou: ")
		if !reader.Scan() {
			return
		}
		input := strings.TrimSpace(reader.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return
		}

		reply, err := runner.Run(ctx, threadID, userID, input)
		if err != nil {
			logx.Error().Err(err).Msg("Turn failed")
			fmt.Println("PocketWise: 系统暂时不可用，请稍后再试。")
			continue
		}
		fmt.Printf("PocketWise: %s\n", reply)
	}
}
