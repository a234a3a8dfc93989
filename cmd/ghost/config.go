package main

import (
	"time"

	"github.com/bdobrica/Ghost/common/environment"
	"github.com/bdobrica/Ghost/internal/ghost/app"
	"github.com/bdobrica/Ghost/internal/ghost/matrix"
)

var defaultEpoch = time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

// loadConfig loads configuration from environment variables.
func loadConfig() *app.Config {
	return &app.Config{
		HTTPAddr:       environment.StringOr("GHOST_HTTP_ADDR", ":8080"),
		DatabasePath:   environment.StringOr("GHOST_DATABASE_PATH", "./ghost.db"),
		UnlockSecret:   environment.StringOr("GHOST_UNLOCK_SECRET", "Admin123"),
		ResetSecret:    environment.StringOr("GHOST_RESET_SECRET", "Arpit@232422"),
		RulesPath:      environment.StringOr("GHOST_RULES_PATH", ""),
		AssetsDir:      environment.StringOr("GHOST_ASSETS_DIR", ""),
		CacheVersion:   environment.StringOr("GHOST_CACHE_VERSION", "v1"),
		HistoryLimit:   environment.IntOr("GHOST_HISTORY_LIMIT", 100),
		Epoch:          environment.DateOr("GHOST_EPOCH", defaultEpoch),
		OwnerBirthdate: environment.DateOr("GHOST_OWNER_BIRTHDATE", time.Time{}),
		Generation: app.GenerationConfig{
			Provider:  environment.StringOr("GHOST_GEN_PROVIDER", "none"),
			APIKey:    environment.StringOr("GHOST_GEN_API_KEY", ""),
			Endpoint:  environment.StringOr("GHOST_GEN_ENDPOINT", ""),
			Model:     environment.StringOr("GHOST_GEN_MODEL", ""),
			Project:   environment.StringOr("GHOST_GEN_PROJECT", ""),
			Location:  environment.StringOr("GHOST_GEN_LOCATION", ""),
			Timeout:   environment.DurationOr("GHOST_GEN_TIMEOUT", 15*time.Second),
			RateLimit: environment.IntOr("GHOST_GEN_RATE_LIMIT", 20),
		},
		MaxRestarts:  environment.IntOr("GHOST_MIC_MAX_RESTARTS", 3),
		RestartDelay: environment.DurationOr("GHOST_MIC_RESTART_DELAY", 500*time.Millisecond),
		VoiceName:    environment.StringOr("GHOST_VOICE_NAME", "Google US English"),
		Locale:       environment.StringOr("GHOST_VOICE_LOCALE", "en-US"),
		Matrix: matrix.Config{
			Homeserver:  environment.StringOr("MATRIX_HOMESERVER", ""),
			UserID:      environment.StringOr("MATRIX_USER_ID", ""),
			AccessToken: environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
			Rooms:       environment.StringSliceOr("MATRIX_ROOMS", nil),
		},
	}
}
