// Package config loads the dispatch core's runtime tunables, the way
// the teacher's own config package does: viper reading a .env file
// with environment overrides, unmarshalled into a typed struct with
// sane defaults set before Unmarshal runs.
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable spec.md §6 enumerates, plus the
// connection strings the store adapters need.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	MongoURL    string `mapstructure:"MONGO_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	AdminUser   string `mapstructure:"ADMIN_USER"`
	AdminHash   string `mapstructure:"ADMIN_PASSWORD_HASH"`

	ResponseTimeAlertMs int64 `mapstructure:"RESPONSE_TIME_ALERT_MS"`
	MemoryAlertBytes    int64 `mapstructure:"MEMORY_ALERT_BYTES"`
	HeapLimitBytes      int64 `mapstructure:"HEAP_LIMIT_BYTES"`

	CacheBaseMinutes float64 `mapstructure:"CACHE_BASE_MINUTES"`

	SpatialGridDegrees    float64 `mapstructure:"SPATIAL_GRID_DEGREES"`
	DriverLivenessMinutes int64   `mapstructure:"DRIVER_LIVENESS_MINUTES"`

	AvailabilityHeartbeatMinutes int64 `mapstructure:"AVAILABILITY_HEARTBEAT_MINUTES"`

	ResourceLimitActiveDispatch int64 `mapstructure:"RESOURCE_LIMIT_ACTIVE_DISPATCH"`
	ResourceLimitHeapBytes      int64 `mapstructure:"RESOURCE_LIMIT_HEAP_BYTES"`
	ResourceLimitCPUPercent     int64 `mapstructure:"RESOURCE_LIMIT_CPU_PERCENT"`
	ResourceLimitDBConns        int64 `mapstructure:"RESOURCE_LIMIT_DB_CONNS"`

	CircuitMaxFailures  int           `mapstructure:"CIRCUIT_MAX_FAILURES"`
	CircuitResetTimeout time.Duration `mapstructure:"CIRCUIT_RESET_TIMEOUT"`
	CircuitRetries      int           `mapstructure:"CIRCUIT_RETRIES"`
	CircuitBaseDelay    time.Duration `mapstructure:"CIRCUIT_BASE_DELAY"`

	SchedulerMaxConcurrentJobs int           `mapstructure:"SCHEDULER_MAX_CONCURRENT_JOBS"`
	SchedulerTick              time.Duration `mapstructure:"SCHEDULER_TICK"`

	ThreatLowThreshold       float64 `mapstructure:"THREAT_LOW_THRESHOLD"`
	ThreatMediumThreshold    float64 `mapstructure:"THREAT_MEDIUM_THRESHOLD"`
	ThreatHighThreshold      float64 `mapstructure:"THREAT_HIGH_THRESHOLD"`
	ThreatSuspendedThreshold float64 `mapstructure:"THREAT_SUSPENDED_THRESHOLD"`

	MongoDatabase   string `mapstructure:"MONGO_DATABASE"`
	MongoCollection string `mapstructure:"MONGO_DRIVER_COLLECTION"`
	RedisAuditKey   string `mapstructure:"REDIS_AUDIT_KEY_PREFIX"`
	RedisAuditMax   int64  `mapstructure:"REDIS_AUDIT_MAX_LEN"`
	RedisIPBlockKey string `mapstructure:"REDIS_IP_BLOCKLIST_KEY"`

	NotifySESFromAddress   string `mapstructure:"NOTIFY_SES_FROM_ADDRESS"`
	NotifyPushTokenURL     string `mapstructure:"NOTIFY_PUSH_TOKEN_URL"`
	NotifyPushClientID     string `mapstructure:"NOTIFY_PUSH_CLIENT_ID"`
	NotifyPushClientSecret string `mapstructure:"NOTIFY_PUSH_CLIENT_SECRET"`
	NotifyPushEndpoint     string `mapstructure:"NOTIFY_PUSH_ENDPOINT"`
	NotifyWebhookSecret    string `mapstructure:"NOTIFY_WEBHOOK_SECRET"`

	OperatorEmail      string `mapstructure:"OPERATOR_EMAIL"`
	OperatorChatID     string `mapstructure:"OPERATOR_CHAT_ID"`
	OperatorWebhookURL string `mapstructure:"OPERATOR_WEBHOOK_URL"`
}

// setDefaults mirrors spec.md §4's stated defaults for every tunable,
// so a deployment with no .env file and no environment overrides
// still boots into a sensible configuration.
func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")

	viper.SetDefault("RESPONSE_TIME_ALERT_MS", int64(5000))
	viper.SetDefault("MEMORY_ALERT_BYTES", int64(134217728))
	viper.SetDefault("HEAP_LIMIT_BYTES", int64(536870912))

	viper.SetDefault("CACHE_BASE_MINUTES", 5.0)

	viper.SetDefault("SPATIAL_GRID_DEGREES", 0.01)
	viper.SetDefault("DRIVER_LIVENESS_MINUTES", int64(10))

	viper.SetDefault("AVAILABILITY_HEARTBEAT_MINUTES", int64(5))

	viper.SetDefault("RESOURCE_LIMIT_ACTIVE_DISPATCH", int64(100))
	viper.SetDefault("RESOURCE_LIMIT_HEAP_BYTES", int64(536870912))
	viper.SetDefault("RESOURCE_LIMIT_CPU_PERCENT", int64(80))
	viper.SetDefault("RESOURCE_LIMIT_DB_CONNS", int64(50))

	viper.SetDefault("CIRCUIT_MAX_FAILURES", 5)
	viper.SetDefault("CIRCUIT_RESET_TIMEOUT", 30*time.Second)
	viper.SetDefault("CIRCUIT_RETRIES", 3)
	viper.SetDefault("CIRCUIT_BASE_DELAY", time.Second)

	viper.SetDefault("SCHEDULER_MAX_CONCURRENT_JOBS", 5)
	viper.SetDefault("SCHEDULER_TICK", time.Second)

	viper.SetDefault("THREAT_LOW_THRESHOLD", 30.0)
	viper.SetDefault("THREAT_MEDIUM_THRESHOLD", 50.0)
	viper.SetDefault("THREAT_HIGH_THRESHOLD", 75.0)
	viper.SetDefault("THREAT_SUSPENDED_THRESHOLD", 95.0)

	viper.SetDefault("MONGO_DATABASE", "dispatch")
	viper.SetDefault("MONGO_DRIVER_COLLECTION", "drivers")
	viper.SetDefault("REDIS_AUDIT_KEY_PREFIX", "audit")
	viper.SetDefault("REDIS_AUDIT_MAX_LEN", int64(1000))
	viper.SetDefault("REDIS_IP_BLOCKLIST_KEY", "ip_blocklist")
}

// LoadConfig reads .env (if present) from path, applies environment
// overrides, and unmarshals into Config with defaults pre-seeded.
func LoadConfig(path string) (*Config, error) {
	setDefaults()

	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("no .env file found, using defaults and environment")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
