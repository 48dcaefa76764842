package configs

import (
	"flag"
	"os"

	"github.com/ferelith/alarmroom/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file location from the --config
// flag, the ALARMROOM_CONFIG env var, or a set of conventional paths. An
// empty result means "run on defaults".
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("ALARMROOM_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"../../config.yaml", // keep for local dev
			"/etc/alarmroom/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
