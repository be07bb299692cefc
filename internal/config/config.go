package config

import (
	"strings"
	"time"

	keycloakauth "github.com/JorgeSaicoski/keycloak-auth"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Auth      AuthConfig      `yaml:"auth"`
	Directory DirectoryConfig `yaml:"directory"`
	Timesheet TimesheetConfig `yaml:"timesheet"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"               env:"DATABASE_DSN"               env-required:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns"    env:"DATABASE_MAX_OPEN_CONNS"    env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns"    env:"DATABASE_MAX_IDLE_CONNS"    env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool          `yaml:"auto_migrate"      env:"DATABASE_AUTO_MIGRATE"      env-default:"true"`
}

// RedisConfig configures the per-user write lock. An empty Addr selects the
// in-process lock, which is only safe with a single replica.
type RedisConfig struct {
	Addr     string        `yaml:"addr"      env:"REDIS_ADDR"`
	Password string        `yaml:"password"  env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"        env:"REDIS_DB"        env-default:"0"`
	LockTTL  time.Duration `yaml:"lock_ttl"  env:"REDIS_LOCK_TTL"  env-default:"10s"`
	LockWait time.Duration `yaml:"lock_wait" env:"REDIS_LOCK_WAIT" env-default:"5s"`
}

// RabbitMQConfig configures notification publishing. An empty URL logs
// notifications instead of publishing them.
type RabbitMQConfig struct {
	URL        string `yaml:"url"         env:"RABBITMQ_URL"`
	Exchange   string `yaml:"exchange"    env:"RABBITMQ_EXCHANGE"    env-default:"notifications"`
	RoutingKey string `yaml:"routing_key" env:"RABBITMQ_ROUTING_KEY" env-default:"timesheet"`
}

// AuthConfig holds Keycloak token verification settings. Either a static
// realm public key or a Keycloak URL (JWKS) must be set.
type AuthConfig struct {
	KeycloakURL         string        `yaml:"keycloak_url"          env:"KEYCLOAK_URL"`
	Realm               string        `yaml:"realm"                 env:"KEYCLOAK_REALM"                env-default:"master"`
	PublicKey           string        `yaml:"public_key"            env:"KEYCLOAK_PUBLIC_KEY"`
	KeyRefreshInterval  time.Duration `yaml:"key_refresh_interval"  env:"KEYCLOAK_KEY_REFRESH_INTERVAL" env-default:"1h"`
	HTTPTimeout         time.Duration `yaml:"http_timeout"          env:"KEYCLOAK_HTTP_TIMEOUT"         env-default:"10s"`
	TrustGatewayHeaders bool          `yaml:"trust_gateway_headers" env:"AUTH_TRUST_GATEWAY_HEADERS"    env-default:"false"`
}

// Keycloak converts the settings into the keycloak-auth middleware config.
func (a AuthConfig) Keycloak() keycloakauth.Config {
	return keycloakauth.Config{
		PublicKeyBase64:    a.PublicKey,
		KeycloakURL:        a.KeycloakURL,
		Realm:              a.Realm,
		RequiredClaims:     []string{"sub"},
		KeyRefreshInterval: a.KeyRefreshInterval,
		HTTPTimeout:        a.HTTPTimeout,
	}
}

// DirectoryConfig selects where task and project data comes from. With an
// empty CoreURL the local read-model tables are queried.
type DirectoryConfig struct {
	CoreURL string        `yaml:"core_url" env:"DIRECTORY_CORE_URL"`
	Timeout time.Duration `yaml:"timeout"  env:"DIRECTORY_TIMEOUT"  env-default:"5s"`
}

// TimesheetConfig holds the business rules of time tracking.
type TimesheetConfig struct {
	DailyCapHours   float64 `yaml:"daily_cap_hours"   env:"DAILY_CAP_HOURS"   env-default:"8"`
	Timezone        string  `yaml:"timezone"          env:"TIMEZONE"          env-default:"UTC"`
	ManualStartHour int     `yaml:"manual_start_hour" env:"MANUAL_START_HOUR" env-default:"9"`

	// Location is resolved from Timezone during validation.
	Location *time.Location `yaml:"-" env:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string        `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string        `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowedHeaders   string        `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization,Content-Type,X-User-ID,X-User-Role"`
	AllowCredentials bool          `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
	MaxAge           time.Duration `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"12h"`
}

// Origins splits AllowedOrigins on commas.
func (c CORSConfig) Origins() []string { return splitList(c.AllowedOrigins) }

func (c CORSConfig) Methods() []string { return splitList(c.AllowedMethods) }

func (c CORSConfig) Headers() []string { return splitList(c.AllowedHeaders) }

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
