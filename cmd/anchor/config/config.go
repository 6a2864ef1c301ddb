package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the defaults the CLI flags sit on top of. Everything is
// overridable per-invocation; the env layer exists so a host can pin its
// image and container locations once.
type Config struct {
	ImageName    string // Default image tarball basename
	ImageDir     string // Where <name>.tar lives
	ContainerDir string // Base for per-container dirs
	LedgerPath   string // Running-container record file
	CgroupRoot   string // Cgroup v1 filesystem root
}

// Load reads configuration from .env (if present) and the environment.
func Load() Config {
	// Ignore error - .env file is optional
	_ = godotenv.Load()

	return Config{
		ImageName:    getEnv("ANCHOR_IMAGE_NAME", "ubuntu-export"),
		ImageDir:     getEnv("ANCHOR_IMAGE_DIR", "."),
		ContainerDir: getEnv("ANCHOR_CONTAINER_DIR", "./build/containers"),
		LedgerPath:   getEnv("ANCHOR_LEDGER_PATH", "containers.txt"),
		CgroupRoot:   getEnv("ANCHOR_CGROUP_ROOT", "/sys/fs/cgroup"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
