package config

import (
	"os"

	"github.com/joho/godotenv"

	"esign-backend/internal/shared/telemetry"
)

// loadEnvFiles loads KEY=VALUE pairs from the given files if they exist and
// returns the files that were applied. Variables already in the environment win.
func loadEnvFiles(paths ...string) []string {
	var loaded []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			telemetry.Warn("config.dotenv_failed", map[string]any{"path": path, "error": err.Error()})
			continue
		}
		loaded = append(loaded, path)
	}
	return loaded
}
