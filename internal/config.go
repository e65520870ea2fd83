package internal

import (
	"log"
	"os"

	"github.com/MrAk47Anand007/DocumentScriptExtraction/internal/util"
	"github.com/goccy/go-yaml"
)

var Config *Configuration

type Configuration struct {
	// Per-build execution timeout in seconds. Zero disables the timeout.
	BuildTimeoutSeconds int64 `yaml:"build_timeout_seconds"`
	// Builds older than this many days are pruned by the daily retention job.
	BuildRetentionDays int64 `yaml:"build_retention_days"`
	// Shell used to execute script content.
	Shell string `yaml:"shell"`
}

const configPath = "config.yaml"

func InitializeConfiguration() {
	Config = &Configuration{
		BuildTimeoutSeconds: 0,
		BuildRetentionDays:  30,
		Shell:               "/bin/sh",
	}

	configFileExists, _ := util.PathExists(configPath)
	if !configFileExists {
		b, err := yaml.Marshal(Config)
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(configPath, b, 0o644); err != nil {
			log.Fatal(err)
		}
	} else {
		configBytes, err := os.ReadFile(configPath)
		if err != nil {
			log.Fatal(err)
		}
		if err := yaml.Unmarshal(configBytes, Config); err != nil {
			log.Fatal(err)
		}
	}
}

func UpdateConfiguration(config *Configuration) error {
	b, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, b, 0o644); err != nil {
		return err
	}

	Config = config

	return nil
}
