package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Fingerprint identifies the configuration a process runs with: the BLAKE3
// hash of its source file, or "defaults" when none was loaded.
func Fingerprint(cfg *Config) (string, error) {
	if cfg.SourcePath == "" {
		return "defaults", nil
	}
	return ComputeBlake3Hash(cfg.SourcePath)
}
