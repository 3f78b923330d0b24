package app

import (
	"time"

	"github.com/shandysiswandi/inboxed/internal/pkg/router"
)

type welcomeResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	Version     string  `json:"version"`
	Environment string  `json:"environment"`
}

func (a *App) welcome(*router.Request) (any, error) {
	return welcomeResponse{Message: "Welcome to Inboxed!"}, nil
}

// health reports liveness. Uptime is in seconds.
func (a *App) health(*router.Request) (any, error) {
	now := a.clock.Now()

	return healthResponse{
		Status:      "healthy",
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
		Uptime:      now.Sub(a.startedAt).Seconds(),
		Version:     a.config.GetString("app.version"),
		Environment: a.config.GetString("app.env"),
	}, nil
}
