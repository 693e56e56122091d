// Command portscope is a TCP and UDP port scanner with an HTTP API.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/anstrom/portscope/cmd/cli"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	if err := loadEnvFiles(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}

// loadEnvFiles loads variables from the given dotenv files into the process
// environment. Variables already set win, and missing files are skipped.
func loadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
