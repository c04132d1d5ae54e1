package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "COOLSIM_"
	configEnvVar = "CONFIG_PATH"
)

// Loader загружает конфигурацию из разных источников
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader создаёт новый загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/coolsim/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption - опция для конфигурации загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix устанавливает префикс переменных окружения
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load загружает конфигурацию с приоритетом:
// 1. Defaults (самый низкий)
// 2. Config file (yaml)
// 3. Environment variables (самый высокий)
func (l *Loader) Load() (*Config, error) {
	// 1. Загружаем значения по умолчанию
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Загружаем из файла конфигурации
	if err := l.loadConfigFile(); err != nil {
		// Файл не обязателен
		fmt.Printf("Warning: %v\n", err)
	}

	// 3. Загружаем из переменных окружения (перезаписывают файл)
	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	// 4. Распаковываем в структуру
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Валидируем
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load загружает конфигурацию через загрузчик по умолчанию
func Load() (*Config, error) {
	return NewLoader().Load()
}

// loadDefaults загружает значения по умолчанию
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "coolsim",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// HTTP
		"http.port":             5000,
		"http.read_timeout":     30 * time.Second,
		"http.write_timeout":    0 * time.Second, // шаг движка может длиться минуты
		"http.idle_timeout":     2 * time.Minute,
		"http.shutdown_timeout": 10 * time.Second,

		// CORS - исходный API открыт для любых источников
		"http.cors.enabled":         true,
		"http.cors.allowed_origins": []string{"*"},
		"http.cors.allowed_methods": []string{"GET", "POST", "PUT", "OPTIONS"},
		"http.cors.allowed_headers": []string{"Content-Type", "Accept", "Origin"},
		"http.cors.max_age":         86400,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "coolsim",
		"metrics.subsystem": "",

		// Tracing
		"tracing.enabled":     false,
		"tracing.endpoint":    "localhost:4317",
		"tracing.sample_rate": 0.1,

		// Simulation
		"simulation.name":          "AlphaDataCenterCooling",
		"simulation.resources_dir": "resources",
		"simulation.step":          300 * time.Second,
		"simulation.base_unit":     300 * time.Second,
		"simulation.horizon":       30099300 * time.Second,

		// Engine sidecar
		"engine.host":            "localhost",
		"engine.port":            8800,
		"engine.request_timeout": 0 * time.Second,
		"engine.solver":          "CVode",
		"engine.rel_tolerance":   1e-6,
		"engine.abs_tolerance":   1e-6,

		// Database (история шагов); memory — без внешних зависимостей
		"database.driver":             "memory",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "coolsim",
		"database.username":           "postgres",
		"database.password":           "",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     10,
		"database.max_idle_conns":     2,
		"database.conn_max_lifetime":  5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.auto_migrate":       true,

		// Rate Limit
		"rate_limit.enabled":          false,
		"rate_limit.requests":         120,
		"rate_limit.window":           time.Minute,
		"rate_limit.strategy":         "token_bucket",
		"rate_limit.backend":          "memory",
		"rate_limit.burst_size":       20,
		"rate_limit.cleanup_interval": 5 * time.Minute,
		"rate_limit.redis_addr":       "localhost:6379",
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile загружает конфигурацию из файла
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv загружает конфигурацию из переменных окружения.
// Ключи с подчёркиванием в имени поля требуют явного маппинга.
func (l *Loader) loadEnv() error {
	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(envKey string, value string) (string, interface{}) {
		key := strings.ToLower(strings.TrimPrefix(envKey, l.envPrefix))

		if mappedKey, ok := envKeyMappings[key]; ok {
			key = mappedKey
		} else {
			key = strings.ReplaceAll(key, "_", ".")
		}

		if isSliceField(key) {
			return key, splitAndTrim(value)
		}

		return key, value
	}), nil)
}

// envKeyMappings - маппинг переменных окружения на ключи конфига
var envKeyMappings = map[string]string{
	// HTTP
	"http_port":                 "http.port",
	"http_read_timeout":         "http.read_timeout",
	"http_write_timeout":        "http.write_timeout",
	"http_idle_timeout":         "http.idle_timeout",
	"http_shutdown_timeout":     "http.shutdown_timeout",
	"http_cors_enabled":         "http.cors.enabled",
	"http_cors_allowed_origins": "http.cors.allowed_origins",
	"http_cors_allowed_methods": "http.cors.allowed_methods",
	"http_cors_allowed_headers": "http.cors.allowed_headers",
	"http_cors_max_age":         "http.cors.max_age",

	// Log
	"log_level":       "log.level",
	"log_format":      "log.format",
	"log_output":      "log.output",
	"log_file_path":   "log.file_path",
	"log_max_size":    "log.max_size",
	"log_max_backups": "log.max_backups",
	"log_max_age":     "log.max_age",

	// Metrics / tracing
	"metrics_enabled":     "metrics.enabled",
	"metrics_port":        "metrics.port",
	"metrics_path":        "metrics.path",
	"metrics_namespace":   "metrics.namespace",
	"tracing_enabled":     "tracing.enabled",
	"tracing_endpoint":    "tracing.endpoint",
	"tracing_sample_rate": "tracing.sample_rate",

	// Simulation
	"simulation_name":          "simulation.name",
	"simulation_resources_dir": "simulation.resources_dir",
	"simulation_step":          "simulation.step",
	"simulation_base_unit":     "simulation.base_unit",
	"simulation_horizon":       "simulation.horizon",

	// Engine
	"engine_host":            "engine.host",
	"engine_port":            "engine.port",
	"engine_request_timeout": "engine.request_timeout",
	"engine_solver":          "engine.solver",
	"engine_rel_tolerance":   "engine.rel_tolerance",
	"engine_abs_tolerance":   "engine.abs_tolerance",

	// Database
	"database_driver":             "database.driver",
	"database_host":               "database.host",
	"database_port":               "database.port",
	"database_database":           "database.database",
	"database_username":           "database.username",
	"database_password":           "database.password",
	"database_ssl_mode":           "database.ssl_mode",
	"database_max_open_conns":     "database.max_open_conns",
	"database_max_idle_conns":     "database.max_idle_conns",
	"database_conn_max_lifetime":  "database.conn_max_lifetime",
	"database_conn_max_idle_time": "database.conn_max_idle_time",
	"database_auto_migrate":       "database.auto_migrate",

	// Rate limit
	"rate_limit_enabled":          "rate_limit.enabled",
	"rate_limit_requests":         "rate_limit.requests",
	"rate_limit_window":           "rate_limit.window",
	"rate_limit_strategy":         "rate_limit.strategy",
	"rate_limit_backend":          "rate_limit.backend",
	"rate_limit_burst_size":       "rate_limit.burst_size",
	"rate_limit_cleanup_interval": "rate_limit.cleanup_interval",
	"rate_limit_redis_addr":       "rate_limit.redis_addr",
}

// isSliceField - поля, которые парсятся как списки через запятую
func isSliceField(key string) bool {
	switch key {
	case "http.cors.allowed_origins",
		"http.cors.allowed_methods",
		"http.cors.allowed_headers":
		return true
	}
	return false
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
