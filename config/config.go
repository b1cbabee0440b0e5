package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerConfig    ServerConfig    `json:"server"`
	LoggingConfig   LoggingConfig   `json:"logging"`
	RedisConfig     RedisConfig     `json:"redis"`
	ExchangesConfig ExchangesConfig `json:"exchanges"`
	ICTConfig       ICTConfig       `json:"ict"`
	ScalpingConfig  ScalpingConfig  `json:"scalping"`
	ArbitrageConfig ArbitrageConfig `json:"arbitrage"`
	LiquidityConfig LiquidityConfig `json:"liquidity"`
	MetricsConfig   MetricsConfig   `json:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins, comma separated
	TLSEnabled      bool   `json:"tls_enabled"`
	TLSCertFile     string `json:"tls_cert_file"`
	TLSKeyFile      string `json:"tls_key_file"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// RedisConfig holds Redis configuration for the analytics caches
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// ExchangesConfig selects the venues and how they are called
type ExchangesConfig struct {
	Enabled           []string             `json:"enabled"`
	MockMode          bool                 `json:"mock_mode"` // Use simulated venues instead of live APIs
	TimeoutSeconds    int                  `json:"timeout_seconds"`
	RequestsPerSecond float64              `json:"requests_per_second"` // Per venue, 0 = unlimited
	Burst             int                  `json:"burst"`
	BaseURLs          map[string]string    `json:"base_urls"` // Overrides per venue
	LiquidationStream bool                 `json:"liquidation_stream"`
	FuturesStreamURL  string               `json:"futures_stream_url"`
	CircuitBreaker    CircuitBreakerConfig `json:"circuit_breaker"`
}

// CircuitBreakerConfig holds the per-venue circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled             bool    `json:"enabled"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	FailureRatio        float64 `json:"failure_ratio"`
	MinRequests         int     `json:"min_requests"`
	HalfOpenRequests    int     `json:"half_open_requests"`
	IntervalSeconds     int     `json:"interval_seconds"`
	CooldownSeconds     int     `json:"cooldown_seconds"`
}

// ICTConfig holds the pattern analyzer configuration
type ICTConfig struct {
	MinCandles      int     `json:"min_candles"`
	MinConfidence   float64 `json:"min_confidence"`
	MinRiskReward   float64 `json:"min_risk_reward"`
	ATRPeriod       int     `json:"atr_period"`
	CandleLimit     int     `json:"candle_limit"`      // Candles fetched per timeframe
	CacheTTLSeconds int     `json:"cache_ttl_seconds"` // Multi-timeframe analysis cache
}

// ScalpingConfig holds the momentum/cascade detector configuration
type ScalpingConfig struct {
	Interval                 string  `json:"interval"`
	CandleLimit              int     `json:"candle_limit"`
	VolumeLookback           int     `json:"volume_lookback"`
	MinConfidence            float64 `json:"min_confidence"`
	LiquidationWindowSeconds int     `json:"liquidation_window_seconds"`
}

// FeeConfig is one exchange's fee schedule in percent
type FeeConfig struct {
	Maker      float64 `json:"maker"`
	Taker      float64 `json:"taker"`
	Withdrawal float64 `json:"withdrawal"`
}

// ArbitrageConfig holds the cross-exchange scanner configuration
type ArbitrageConfig struct {
	MinProfitPercent float64              `json:"min_profit_percent"`
	MinVolume24h     float64              `json:"min_volume_24h"`
	MinConfidence    float64              `json:"min_confidence"`
	TopN             int                  `json:"top_n"`
	CacheTTLSeconds  int                  `json:"cache_ttl_seconds"`
	ScanInterval     int                  `json:"scan_interval_seconds"` // Background scan for /ws/arbitrage, 0 = off
	DefaultSymbols   []string             `json:"default_symbols"`
	Fees             map[string]FeeConfig `json:"fees"`
}

// LiquidityConfig holds the order book aggregator configuration
type LiquidityConfig struct {
	Depth               int     `json:"depth"`
	DisplayLevels       int     `json:"display_levels"`
	ClusterThresholdPct float64 `json:"cluster_threshold_pct"`
	MaxClusters         int     `json:"max_clusters"`
	PriceDecimals       int     `json:"price_decimals"`
	CacheTTLSeconds     int     `json:"cache_ttl_seconds"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Default returns the configuration used when neither a file nor the environment set a value.
func Default() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		RedisConfig: RedisConfig{
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		ExchangesConfig: ExchangesConfig{
			Enabled:           []string{"binance", "bybit", "okx", "gateio", "kucoin"},
			TimeoutSeconds:    10,
			RequestsPerSecond: 10,
			Burst:             5,
			FuturesStreamURL:  "wss://fstream.binance.com/ws/!forceOrder@arr",
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:             true,
				ConsecutiveFailures: 5,
				FailureRatio:        0.6,
				MinRequests:         10,
				HalfOpenRequests:    1,
				IntervalSeconds:     60,
				CooldownSeconds:     30,
			},
		},
		ICTConfig: ICTConfig{
			MinCandles:      50,
			MinConfidence:   60,
			MinRiskReward:   1.5,
			ATRPeriod:       14,
			CandleLimit:     200,
			CacheTTLSeconds: 60,
		},
		ScalpingConfig: ScalpingConfig{
			Interval:                 "1m",
			CandleLimit:              100,
			VolumeLookback:           20,
			MinConfidence:            70,
			LiquidationWindowSeconds: 300,
		},
		ArbitrageConfig: ArbitrageConfig{
			MinProfitPercent: 0.5,
			MinVolume24h:     100000,
			MinConfidence:    60,
			TopN:             20,
			CacheTTLSeconds:  5,
			ScanInterval:     30,
			DefaultSymbols: []string{
				"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
				"ADAUSDT", "AVAXUSDT", "DOGEUSDT", "MATICUSDT", "DOTUSDT",
			},
			Fees: map[string]FeeConfig{
				"binance": {Maker: 0.1, Taker: 0.1, Withdrawal: 0.0005},
				"bybit":   {Maker: 0.1, Taker: 0.1, Withdrawal: 0.0005},
				"okx":     {Maker: 0.08, Taker: 0.1, Withdrawal: 0.0004},
				"gateio":  {Maker: 0.15, Taker: 0.15, Withdrawal: 0.001},
				"kucoin":  {Maker: 0.1, Taker: 0.1, Withdrawal: 0.0005},
			},
		},
		LiquidityConfig: LiquidityConfig{
			Depth:               100,
			DisplayLevels:       50,
			ClusterThresholdPct: 0.5,
			MaxClusters:         10,
			PriceDecimals:       2,
			CacheTTLSeconds:     10,
		},
		MetricsConfig: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads config.json from the working directory (when present) over the defaults
// and then applies environment overrides.
func Load() (*Config, error) {
	return LoadFile("config.json")
}

// LoadFile is Load with an explicit file. A missing file is not an error; a malformed
// one is.
func LoadFile(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		if err := loadFromFile(filename, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables take precedence
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.TLSEnabled = getEnvBoolOrDefault("SERVER_TLS_ENABLED", cfg.ServerConfig.TLSEnabled)
	cfg.ServerConfig.TLSCertFile = getEnvOrDefault("SERVER_TLS_CERT", cfg.ServerConfig.TLSCertFile)
	cfg.ServerConfig.TLSKeyFile = getEnvOrDefault("SERVER_TLS_KEY", cfg.ServerConfig.TLSKeyFile)
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", cfg.ServerConfig.ReadTimeout)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", cfg.ServerConfig.WriteTimeout)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)

	// Exchanges config
	ex := &cfg.ExchangesConfig
	ex.Enabled = getEnvListOrDefault("EXCHANGES_ENABLED", ex.Enabled)
	ex.MockMode = getEnvBoolOrDefault("MOCK_MODE", ex.MockMode)
	ex.TimeoutSeconds = getEnvIntOrDefault("EXCHANGES_TIMEOUT_SECONDS", ex.TimeoutSeconds)
	ex.RequestsPerSecond = getEnvFloatOrDefault("EXCHANGES_REQUESTS_PER_SECOND", ex.RequestsPerSecond)
	ex.Burst = getEnvIntOrDefault("EXCHANGES_BURST", ex.Burst)
	ex.LiquidationStream = getEnvBoolOrDefault("LIQUIDATION_STREAM_ENABLED", ex.LiquidationStream)
	ex.FuturesStreamURL = getEnvOrDefault("FUTURES_STREAM_URL", ex.FuturesStreamURL)
	if url := os.Getenv("BINANCE_BASE_URL"); url != "" {
		if ex.BaseURLs == nil {
			ex.BaseURLs = make(map[string]string)
		}
		ex.BaseURLs["binance"] = url
	}

	// Circuit breaker config
	cb := &ex.CircuitBreaker
	cb.Enabled = getEnvBoolOrDefault("CIRCUIT_BREAKER_ENABLED", cb.Enabled)
	cb.ConsecutiveFailures = getEnvIntOrDefault("CIRCUIT_CONSECUTIVE_FAILURES", cb.ConsecutiveFailures)
	cb.CooldownSeconds = getEnvIntOrDefault("CIRCUIT_COOLDOWN_SECONDS", cb.CooldownSeconds)

	// Detector thresholds
	cfg.ICTConfig.MinConfidence = getEnvFloatOrDefault("ICT_MIN_CONFIDENCE", cfg.ICTConfig.MinConfidence)
	cfg.ScalpingConfig.MinConfidence = getEnvFloatOrDefault("SCALPING_MIN_CONFIDENCE", cfg.ScalpingConfig.MinConfidence)
	cfg.ArbitrageConfig.MinProfitPercent = getEnvFloatOrDefault("ARBITRAGE_MIN_PROFIT_PERCENT", cfg.ArbitrageConfig.MinProfitPercent)
	cfg.ArbitrageConfig.TopN = getEnvIntOrDefault("ARBITRAGE_TOP_N", cfg.ArbitrageConfig.TopN)
	cfg.ArbitrageConfig.ScanInterval = getEnvIntOrDefault("ARBITRAGE_SCAN_INTERVAL", cfg.ArbitrageConfig.ScanInterval)
	cfg.LiquidityConfig.ClusterThresholdPct = getEnvFloatOrDefault("LIQUIDITY_CLUSTER_THRESHOLD_PCT", cfg.LiquidityConfig.ClusterThresholdPct)

	// Metrics config
	cfg.MetricsConfig.Enabled = getEnvBoolOrDefault("METRICS_ENABLED", cfg.MetricsConfig.Enabled)
	cfg.MetricsConfig.Path = getEnvOrDefault("METRICS_PATH", cfg.MetricsConfig.Path)
}

// loadFromFile overlays the JSON file onto cfg; keys absent from the file keep their value.
func loadFromFile(filename string, cfg *Config) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	return nil
}

// Timeout returns the per-call venue timeout.
func (c ExchangesConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Origins splits AllowedOrigins into a list.
func (c ServerConfig) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// Address is host:port for the HTTP listener.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if list := splitList(value); len(list) > 0 {
			return list
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Default()
	config.RedisConfig.Enabled = true
	config.ExchangesConfig.LiquidationStream = true
	config.ExchangesConfig.BaseURLs = map[string]string{
		"binance": "https://api.binance.com",
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
