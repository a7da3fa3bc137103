package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "AVENQOR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	FeatureFlags  FeatureFlagsConfig
	Tokens        TokensConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Jobs          JobsConfig
	Mail          MailConfig
	AuthRateLimit AuthRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AVENQOR_APP_ENV" required:"true"`
	Port         string `envconfig:"AVENQOR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AVENQOR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AVENQOR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AVENQOR_DB_DSN"`
	Driver string `envconfig:"AVENQOR_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AVENQOR_DB_HOST"`
	Port     int    `envconfig:"AVENQOR_DB_PORT" default:"5432"`
	User     string `envconfig:"AVENQOR_DB_USER"`
	Password string `envconfig:"AVENQOR_DB_PASSWORD"`
	Name     string `envconfig:"AVENQOR_DB_NAME"`
	SSLMode  string `envconfig:"AVENQOR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AVENQOR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AVENQOR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AVENQOR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AVENQOR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AVENQOR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AVENQOR_REDIS_ADDR"`
	Password     string        `envconfig:"AVENQOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"AVENQOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AVENQOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AVENQOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AVENQOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AVENQOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AVENQOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AVENQOR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AVENQOR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AVENQOR_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AVENQOR_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AVENQOR_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AVENQOR_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AVENQOR_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AVENQOR_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AVENQOR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AVENQOR_AUTO_MIGRATE" default:"false"`
}

type TokensConfig struct {
	SignupGrant int `envconfig:"AVENQOR_TOKENS_SIGNUP_GRANT" default:"0"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AVENQOR_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"AVENQOR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AVENQOR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	GenerationTopic        string `envconfig:"AVENQOR_PUBSUB_GENERATION_TOPIC" required:"true"`
	GenerationSubscription string `envconfig:"AVENQOR_PUBSUB_GENERATION_SUBSCRIPTION" required:"true"`
}

type JobsConfig struct {
	PublishBatchSize int           `envconfig:"AVENQOR_JOBS_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval     time.Duration `envconfig:"AVENQOR_JOBS_PUBLISH_POLL_INTERVAL" default:"500ms"`
	MaxAttempts      int           `envconfig:"AVENQOR_JOBS_MAX_ATTEMPTS" default:"3"`
	ProgressTTL      time.Duration `envconfig:"AVENQOR_JOBS_PROGRESS_TTL" default:"24h"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"AVENQOR_RL_LOGIN_WINDOW" default:"5m"`
	LoginIPLimit       int64         `envconfig:"AVENQOR_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int64         `envconfig:"AVENQOR_RL_LOGIN_EMAIL_LIMIT" default:"10"`
	RegisterWindow     time.Duration `envconfig:"AVENQOR_RL_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int64         `envconfig:"AVENQOR_RL_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int64         `envconfig:"AVENQOR_RL_REGISTER_EMAIL_LIMIT" default:"5"`
}

type MailConfig struct {
	FromEmail string `envconfig:"AVENQOR_MAIL_FROM_EMAIL" default:"no-reply@avenqor.net"`
	FromName  string `envconfig:"AVENQOR_MAIL_FROM_NAME" default:"Avenqor"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		"AVENQOR_DB_HOST": db.Host,
		"AVENQOR_DB_USER": db.User,
		"AVENQOR_DB_NAME": db.Name,
	}
	for _, key := range []string{"AVENQOR_DB_HOST", "AVENQOR_DB_USER", "AVENQOR_DB_NAME"} {
		if parts[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either AVENQOR_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
