// Package types holds the JSON wire types of the hostbot control plane.
package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: unauthorized
	Error string `json:"error" example:"unauthorized"`
	// HTTP status code.
	// example: 401
	Code int `json:"code" example:"401"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Always "ok" while the process serves requests.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Seconds since process start.
	// example: 12.5
	Uptime float64 `json:"uptime" example:"12.5"`
	// Connection readiness: ready or not_ready.
	// example: ready
	BotStatus string `json:"bot_status" example:"ready"`
}

// BotMetrics describes the platform connection.
type BotMetrics struct {
	// online once logged in and polling, offline otherwise.
	// example: online
	Status string `json:"status" example:"online"`
	// Distinct chats seen since start.
	// example: 4
	Guilds int `json:"guilds" example:"4"`
	// Known users.
	// example: 120
	Users int `json:"users" example:"120"`
	// Commands in the registry.
	// example: 6
	CommandsLoaded int `json:"commands_loaded" example:"7"`
}

// ServerMetrics describes hosted game servers.
type ServerMetrics struct {
	// example: 2
	Active int `json:"active" example:"2"`
	// example: 1
	QueueSize int `json:"queue_size" example:"1"`
	// example: 6
	MaxConcurrent int `json:"max_concurrent" example:"6"`
}

// EconomyMetrics aggregates coin transactions.
type EconomyMetrics struct {
	TotalCoinsEarned  int64 `json:"total_coins_earned"`
	TotalCoinsSpent   int64 `json:"total_coins_spent"`
	TotalTransactions int64 `json:"total_transactions"`
}

// SystemMetrics describes the runtime.
type SystemMetrics struct {
	// example: go1.24.6
	GoVersion string `json:"go_version" example:"go1.24.6"`
	// example: linux/amd64
	Platform string `json:"platform" example:"linux/amd64"`
	// example: production
	Env string `json:"env" example:"production"`
}

// MetricsResponse is returned by GET /metrics.
type MetricsResponse struct {
	// RFC3339 time the snapshot was taken.
	Timestamp     string         `json:"timestamp"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	MemoryUsageMB float64        `json:"memory_usage_mb"`
	Bot           BotMetrics     `json:"bot"`
	Servers       ServerMetrics  `json:"servers"`
	Economy       EconomyMetrics `json:"economy"`
	System        SystemMetrics  `json:"system"`
}

// NotifyRequest is the body of POST /notify-bot.
type NotifyRequest struct {
	// Target chat.
	// example: 123456789
	ChatID int64 `json:"chat_id" example:"123456789"`
	// Text to deliver.
	// example: Your server is ready.
	Message string `json:"message" example:"Your server is ready."`
	// Optional user the notification concerns, for logs.
	UserID int64 `json:"user_id,omitempty"`
}

// NotifyResponse acknowledges a delivered notification.
type NotifyResponse struct {
	OK bool `json:"ok"`
}
