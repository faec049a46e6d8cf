package model

// ================ Config ================
type ConversationConfig struct {
	TTL        string `envconfig:"CONVERSATION_TTL" default:"0"`
	WindowSize int    `envconfig:"CONVERSATION_WINDOW_SIZE" default:"20"`
	Tools      struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
	// CallTimeoutSeconds bounds each classify/generate call. Expiry feeds
	// the unknown-intent / generation-fallback paths instead of hanging.
	CallTimeoutSeconds int `envconfig:"CALL_TIMEOUT_SECONDS" default:"30"`
}

type IntentModelConfig struct {
	Model       string  `envconfig:"INTENT_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"INTENT_MAX_TOKENS" default:"100"`
	Temperature float32 `envconfig:"INTENT_TEMPERATURE" default:"0.1"`
}

type ChatResponseModelConfig struct {
	Model       string  `envconfig:"CHAT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"CHAT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"CHAT_TEMPERATURE" default:"0.25"`
}

type PlanModelConfig struct {
	Model       string  `envconfig:"PLAN_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"PLAN_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"PLAN_TEMPERATURE" default:"0.7"`
}

type PlanAgentConfig struct {
	// SharedThread restores the upstream behaviour of checkpointing every
	// user's plan turns under one constant thread id. Off by default: the
	// plan thread is scoped per user.
	SharedThread bool `envconfig:"PLAN_SHARED_THREAD" default:"false"`
	MaxToolCalls int  `envconfig:"PLAN_TOOL_MAX_CALLS" default:"10"`
}

type StorageConfig struct {
	Path string `envconfig:"SQLITE_PATH" default:"pocketwise.db"`
}

type ServerConfig struct {
	Addr string `envconfig:"HTTP_ADDR" default:":8080"`
}
