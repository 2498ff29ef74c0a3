package config

import (
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFile reads KEY=VALUE pairs from filename without touching the process
// environment. An empty filename yields no variables.
func loadEnvFile(filename string) (map[string]string, error) {
	if filename == "" {
		return nil, nil
	}
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}
	return godotenv.Read(filename)
}
