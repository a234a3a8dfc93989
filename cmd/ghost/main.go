// Ghost is a personal chat assistant served to browsers over HTTP, to Matrix
// rooms, and to the terminal.
//
// Configuration comes from environment variables, some of which can be
// overridden by flags:
//
//	GHOST_HTTP_ADDR          - web listen address (default ":8080"; empty disables)
//	GHOST_DATABASE_PATH      - SQLite file (default "./ghost.db"; empty keeps sessions in memory)
//	GHOST_UNLOCK_SECRET      - unlock secret (default "Admin123")
//	GHOST_RESET_SECRET       - secret that wipes the chat (default "Arpit@232422")
//	GHOST_RULES_PATH         - YAML rule book replacing the embedded one
//	GHOST_ASSETS_DIR         - static asset directory replacing the embedded one
//	GHOST_CACHE_VERSION      - offline cache version (default "v1")
//	GHOST_HISTORY_LIMIT      - persisted chat messages per session (default 100)
//	GHOST_EPOCH              - Ghost's birthday, YYYY-MM-DD (default 2025-07-01)
//	GHOST_OWNER_BIRTHDATE    - the owner's birthday, YYYY-MM-DD
//	GHOST_GEN_PROVIDER       - "openai", "gemini" or "none" (default)
//	GHOST_GEN_API_KEY        - generation API key
//	GHOST_GEN_ENDPOINT       - OpenAI-compatible base URL
//	GHOST_GEN_MODEL          - generation model
//	GHOST_GEN_PROJECT        - Vertex AI project for gemini without an API key
//	GHOST_GEN_LOCATION       - Vertex AI location
//	GHOST_GEN_TIMEOUT        - per-call generation timeout (default 15s)
//	GHOST_GEN_RATE_LIMIT     - generation calls per session per minute (default 20)
//	GHOST_MIC_MAX_RESTARTS   - recognition restarts before giving up (default 3)
//	GHOST_MIC_RESTART_DELAY  - pause before a recognition restart (default 500ms)
//	GHOST_VOICE_NAME         - preferred synthesis voice (default "Google US English")
//	GHOST_VOICE_LOCALE       - fallback synthesis locale (default "en-US")
//	MATRIX_HOMESERVER        - Matrix homeserver URL
//	MATRIX_USER_ID           - Ghost's Matrix ID
//	MATRIX_ACCESS_TOKEN      - Ghost's Matrix access token
//	MATRIX_ROOMS             - comma-separated rooms to join and answer in
//	LOG_LEVEL                - "debug", "info", "warn", "error" (default "info")
//	LOG_FORMAT               - "text" or "json" (default "text")
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
