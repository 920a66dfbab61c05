package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/codegolf/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.MaxCodeBytes, convey.ShouldEqual, 65_536)
				convey.So(cfg.Challenges, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CODEGOLF_ADDR", ":8080")
			_ = os.Setenv("CODEGOLF_QUEUE_SIZE", "500")
			_ = os.Setenv("CODEGOLF_WORKER_COUNT", "16")
			_ = os.Setenv("CODEGOLF_LOG_FORMAT", "json")
			_ = os.Setenv("CODEGOLF_CATALOG_BASE_URL", "https://golf.example.com")
			_ = os.Setenv("CODEGOLF_SUBMIT_RATE_PER_SECOND", "2.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.CatalogBaseURL, convey.ShouldEqual, "https://golf.example.com")
				convey.So(cfg.SubmitRatePerSecond, convey.ShouldEqual, 2.5)
			})
		})

		convey.Convey("When loading config with a YAML file listing challenges", func() {
			yamlContent := `
addr: ":9090"
max_leaderboard_limit: 25
publish_topic: golf.accepted
challenges:
  - id: 1
    title: Two Sum
    difficulty: 150
    input_format: two integers
    output_format: their sum
  - id: 2
    title: FizzBuzz
    difficulty: 100
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CODEGOLF_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 25)
				convey.So(cfg.PublishTopic, convey.ShouldEqual, "golf.accepted")
				convey.So(cfg.Challenges, convey.ShouldHaveLength, 2)
				convey.So(cfg.Challenges[0].Title, convey.ShouldEqual, "Two Sum")
				convey.So(cfg.Challenges[0].Difficulty, convey.ShouldEqual, 150)
				convey.So(cfg.Challenges[0].OutputFormat, convey.ShouldEqual, "their sum")
				convey.So(cfg.Challenges[1].ID, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 300
worker_count: 24
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CODEGOLF_CONFIG", tmpFile)
			_ = os.Setenv("CODEGOLF_ADDR", ":8080")
			_ = os.Setenv("CODEGOLF_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CODEGOLF_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CODEGOLF_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("CODEGOLF_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CODEGOLF_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the YAML file repeats a challenge id", func() {
			tmpFile := createTempConfigFile(`
challenges:
  - {id: 3, difficulty: 100}
  - {id: 3, difficulty: 120}
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CODEGOLF_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CODEGOLF_CONFIG",
		"CODEGOLF_ADDR",
		"CODEGOLF_QUEUE_SIZE",
		"CODEGOLF_WORKER_COUNT",
		"CODEGOLF_LOG_FORMAT",
		"CODEGOLF_CATALOG_BASE_URL",
		"CODEGOLF_SUBMIT_RATE_PER_SECOND",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "codegolf-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
