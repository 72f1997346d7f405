package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string `yaml:"port"`
	LogMode  string `yaml:"logMode"` // "dev" (default) | "prod"
	DBURL    string `yaml:"dbUrl"`
	SeedsDir string `yaml:"seedsDir"` // YAML-описания таблиц, создаются на старте (опционально)
	EnumsDir string `yaml:"enumsDir"` // справочники опций для select-полей

	// Диспетчер workflow: ограниченная очередь + пул воркеров
	WorkflowWorkers   int `yaml:"workflowWorkers"`
	WorkflowQueueSize int `yaml:"workflowQueueSize"`

	// Защитный кап на action-узлы UPDATE/DELETE
	ActionQueryLimit int `yaml:"actionQueryLimit"`
}

func def() Config {
	return Config{
		Port:     "8080",
		LogMode:  "dev",
		DBURL:    "",
		SeedsDir: "",
		EnumsDir: "reference/enums",

		WorkflowWorkers:   4,
		WorkflowQueueSize: 256,

		ActionQueryLimit: 100,
	}
}

func loadYAML(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// LoadWithPath читает YAML по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(yamlPath string) Config {
	cfg := def()

	// YAML (если файл существует)
	if st, err := os.Stat(yamlPath); err == nil && !st.IsDir() {
		if c2, err := loadYAML(yamlPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("MAPFORM_PORT", cfg.Port)
	cfg.LogMode = getenv("MAPFORM_LOG_MODE", cfg.LogMode)
	cfg.DBURL = getenv("MAPFORM_DB_URL", cfg.DBURL)
	cfg.SeedsDir = getenv("MAPFORM_SEEDS_DIR", cfg.SeedsDir)
	cfg.EnumsDir = getenv("MAPFORM_ENUMS_DIR", cfg.EnumsDir)
	cfg.WorkflowWorkers = getenvInt("MAPFORM_WORKFLOW_WORKERS", cfg.WorkflowWorkers)
	cfg.WorkflowQueueSize = getenvInt("MAPFORM_WORKFLOW_QUEUE", cfg.WorkflowQueueSize)
	cfg.ActionQueryLimit = getenvInt("MAPFORM_ACTION_QUERY_LIMIT", cfg.ActionQueryLimit)

	// Flags overrides
	configPath := flag.String("config", yamlPath, "Path to config YAML")
	port := flag.String("port", cfg.Port, "HTTP port")
	logMode := flag.String("log-mode", cfg.LogMode, "Log mode (dev/prod)")
	db := flag.String("db", cfg.DBURL, "Postgres URL (required)")
	seeds := flag.String("seeds", cfg.SeedsDir, "Path to table-definition seeds directory")
	enums := flag.String("enums", cfg.EnumsDir, "Path to option catalogs directory")
	workers := flag.Int("workflow-workers", cfg.WorkflowWorkers, "Workflow worker pool size")
	queue := flag.Int("workflow-queue", cfg.WorkflowQueueSize, "Workflow queue capacity")

	flag.Parse()

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != yamlPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.LogMode = strings.TrimSpace(*logMode)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.SeedsDir = strings.TrimSpace(*seeds)
	cfg.EnumsDir = strings.TrimSpace(*enums)
	if *workers > 0 {
		cfg.WorkflowWorkers = *workers
	}
	if *queue > 0 {
		cfg.WorkflowQueueSize = *queue
	}

	return cfg
}
