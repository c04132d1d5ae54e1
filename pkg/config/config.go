// pkg/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App        AppConfig        `koanf:"app"`
	HTTP       HTTPConfig       `koanf:"http"`
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Tracing    TracingConfig    `koanf:"tracing"`
	Simulation SimulationConfig `koanf:"simulation"`
	Engine     EngineConfig     `koanf:"engine"`
	Database   DatabaseConfig   `koanf:"database"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// HTTPConfig - настройки HTTP сервера
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig - настройки CORS
type CORSConfig struct {
	Enabled        bool     `koanf:"enabled"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	AllowedMethods []string `koanf:"allowed_methods"`
	AllowedHeaders []string `koanf:"allowed_headers"`
	MaxAge         int      `koanf:"max_age"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"` // 0 — отдаём /metrics на основном порту
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	SampleRate float64 `koanf:"sample_rate"`
}

// SimulationConfig - настройки симуляции
type SimulationConfig struct {
	Name         string        `koanf:"name"`          // имя тест-кейса
	ResourcesDir string        `koanf:"resources_dir"` // таблицы возмущений, baseline, веса суррогата
	Step         time.Duration `koanf:"step"`          // шаг управления по умолчанию
	BaseUnit     time.Duration `koanf:"base_unit"`     // базовая единица времени
	Horizon      time.Duration `koanf:"horizon"`       // максимальное время симуляции
}

// EngineConfig - подключение к физическому движку (sidecar)
type EngineConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"` // 0 — без таймаута, шаг движка может быть долгим
	Solver         string        `koanf:"solver"`
	RelTolerance   float64       `koanf:"rel_tolerance"`
	AbsTolerance   float64       `koanf:"abs_tolerance"`
}

// Address возвращает полный адрес движка
func (e EngineConfig) Address() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// DatabaseConfig - настройки базы данных (хранилище истории шагов)
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"` // memory, postgres
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	Database        string        `koanf:"database"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// RateLimitConfig - настройки rate limiting
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Strategy        string        `koanf:"strategy"` // token_bucket, fixed_window
	Backend         string        `koanf:"backend"`  // memory, redis
	BurstSize       int           `koanf:"burst_size"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
}

// Validate проверяет конфигурацию на корректность
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTP.Port)
	}

	if c.Simulation.BaseUnit <= 0 {
		return fmt.Errorf("simulation base_unit must be positive, got %s", c.Simulation.BaseUnit)
	}

	if c.Simulation.Step <= 0 || c.Simulation.Step%c.Simulation.BaseUnit != 0 {
		return fmt.Errorf("simulation step must be a positive multiple of %s, got %s",
			c.Simulation.BaseUnit, c.Simulation.Step)
	}

	if c.Simulation.Horizon < c.Simulation.BaseUnit {
		return fmt.Errorf("simulation horizon must cover at least one base unit, got %s", c.Simulation.Horizon)
	}

	if c.Simulation.ResourcesDir == "" {
		return fmt.Errorf("simulation resources_dir is required")
	}

	switch c.Database.Driver {
	case "", "memory", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Engine.Host == "" {
		return fmt.Errorf("engine host is required")
	}

	return nil
}
