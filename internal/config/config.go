package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all settings for the tips service.
type Config struct {
	HTTPPort       string
	DataDir        string
	ReportsDir     string
	JournalPath    string
	DBPath         string
	CatalogPath    string
	MaxTips        int
	WorkerCount    int
	QueueSize      int
	EnableWatcher  bool
	GroupMeBotID   string
	GroupMeURL     string
	AssistantModel string
	GoogleProject  string
	GoogleLocation string
	Environment    string
	StrictConfig   bool
	ConfigPath     string
}

// AssistantEnabled reports whether enough is configured to reach the model backend.
func (c Config) AssistantEnabled() bool {
	return strings.TrimSpace(c.GoogleProject) != "" && strings.TrimSpace(c.AssistantModel) != ""
}

type fileConfig struct {
	HTTPPort       string `json:"http_port" yaml:"http_port"`
	DataDir        string `json:"data_dir" yaml:"data_dir"`
	ReportsDir     string `json:"reports_dir" yaml:"reports_dir"`
	JournalPath    string `json:"journal_path" yaml:"journal_path"`
	DBPath         string `json:"db_path" yaml:"db_path"`
	CatalogPath    string `json:"catalog_path" yaml:"catalog_path"`
	MaxTips        int    `json:"max_tips" yaml:"max_tips"`
	WorkerCount    int    `json:"worker_count" yaml:"worker_count"`
	QueueSize      int    `json:"queue_size" yaml:"queue_size"`
	EnableWatcher  *bool  `json:"enable_watcher" yaml:"enable_watcher"`
	AssistantModel string `json:"assistant_model" yaml:"assistant_model"`
}

const (
	defaultPort        = ":8080"
	defaultDataDir     = "runtime"
	defaultJournalFile = "voice_reports.json"
	defaultDBFile      = "jobs.db"
	defaultMaxTips     = 3
	maxMaxTips         = 15
	defaultWorkerCount = 1
	maxWorkerCount     = 8
	defaultQueueSize   = 64
	minQueueSize       = 1
	maxQueueSize       = 1024
	defaultModel       = "gemini-1.5-flash"
	defaultLocation    = "us-central1"
	defaultGroupMeURL  = "https://api.groupme.com/v3/bots/post"
)

// Load reads .env, the optional YAML config file, then environment variables.
// Environment wins over the file, the file wins over defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		GroupMeBotID:   os.Getenv("GROUPME_BOT_ID"),
		GroupMeURL:     getenv("GROUPME_URL", defaultGroupMeURL),
		GoogleProject:  firstNonEmpty(os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("PROJECT")),
		GoogleLocation: firstNonEmpty(os.Getenv("GOOGLE_CLOUD_LOCATION"), os.Getenv("LOCATION"), defaultLocation),
		Environment:    getenv("ENVIRONMENT", "local"),
		StrictConfig:   getenvBool("STRICT_CONFIG", false),
		ConfigPath:     getenv("CONFIG_PATH", filepath.Join("config", "config.yaml")),
	}

	fileCfg, err := loadFileConfig(cfg.ConfigPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", cfg.ConfigPath, err)
		}
		log.Printf("config: load failed (%s): %v (using defaults)", cfg.ConfigPath, err)
	}

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), os.Getenv("PORT"), fileCfg.HTTPPort, defaultPort)
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}
	cfg.DataDir = firstNonEmpty(os.Getenv("DATA_DIR"), fileCfg.DataDir, defaultDataDir)
	cfg.ReportsDir = firstNonEmpty(os.Getenv("REPORTS_DIR"), fileCfg.ReportsDir, filepath.Join(cfg.DataDir, "inbox"))
	cfg.JournalPath = firstNonEmpty(os.Getenv("JOURNAL_PATH"), fileCfg.JournalPath, filepath.Join(cfg.DataDir, defaultJournalFile))
	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fileCfg.DBPath, filepath.Join(cfg.DataDir, defaultDBFile))
	cfg.CatalogPath = firstNonEmpty(os.Getenv("TIPS_CATALOG_PATH"), fileCfg.CatalogPath)
	cfg.AssistantModel = firstNonEmpty(os.Getenv("ASSISTANT_MODEL"), os.Getenv("MODEL"), fileCfg.AssistantModel, defaultModel)

	cfg.MaxTips = clampInt(getenvInt("MAX_TIPS", firstPositive(fileCfg.MaxTips, defaultMaxTips)), 1, maxMaxTips)
	cfg.WorkerCount = clampInt(getenvInt("WORKER_COUNT", firstPositive(fileCfg.WorkerCount, defaultWorkerCount)), 1, maxWorkerCount)
	cfg.QueueSize = clampInt(getenvInt("QUEUE_SIZE", firstPositive(fileCfg.QueueSize, defaultQueueSize)), minQueueSize, maxQueueSize)
	if cfg.QueueSize < cfg.WorkerCount {
		log.Printf("config: QUEUE_SIZE must be >= WORKER_COUNT; raising to %d", cfg.WorkerCount)
		cfg.QueueSize = cfg.WorkerCount
	}

	watcherDefault := true
	if fileCfg.EnableWatcher != nil {
		watcherDefault = *fileCfg.EnableWatcher
	}
	cfg.EnableWatcher = getenvBool("ENABLE_WATCHER", watcherDefault)

	log.Printf("config: data_dir=%s reports_dir=%s journal=%s db=%s env=%s", cfg.DataDir, cfg.ReportsDir, cfg.JournalPath, cfg.DBPath, cfg.Environment)
	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	return cfg, err
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// Now returns a UTC timestamp truncated to the second.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
