package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreDynamoDB = "dynamodb"
	StoreRedis    = "redis"
	StoreScylla   = "scylla"

	MailSES  = "ses"
	MailSMTP = "smtp"
	MailLog  = "log"

	KeySourceSecretsManager = "secretsmanager"
	KeySourceKMS            = "kms"
	KeySourceStatic         = "static"

	// devSigningKey is only accepted outside production.
	devSigningKey = "dev-signing-key-change-me"
)

type Config struct {
	Environment string        `yaml:"environment"`
	Server      ServerConfig  `yaml:"server"`
	Logging     LoggingConfig `yaml:"logging"`
	OTP         OTPConfig     `yaml:"otp"`
	Token       TokenConfig   `yaml:"token"`
	Store       StoreConfig   `yaml:"store"`
	Mail        MailConfig    `yaml:"mail"`
	AWS         AWSConfig     `yaml:"aws"`
	Audit       AuditConfig   `yaml:"audit"`
}

type ServerConfig struct {
	Port               int           `yaml:"port"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	TLS                TLSConfig     `yaml:"tls"`
}

// TLSConfig only applies to the local server; Lambda traffic terminates TLS
// at the gateway.
type TLSConfig struct {
	Enabled       bool     `yaml:"enabled"`
	CertFile      string   `yaml:"cert_file"`
	KeyFile       string   `yaml:"key_file"`
	AutoCertHost  string   `yaml:"autocert_host"`
	AutoCertDir   string   `yaml:"autocert_dir"`
	AutoCertEmail string   `yaml:"autocert_email"`
	DevHosts      []string `yaml:"dev_hosts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type OTPConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	HashAlgorithm string        `yaml:"hash_algorithm"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	Argon2        Argon2Config  `yaml:"argon2"`
	// SingleUse deletes the record after a successful verification.
	SingleUse   bool          `yaml:"single_use"`
	IssueLimit  int           `yaml:"issue_limit"`
	IssueWindow time.Duration `yaml:"issue_window"`
	MailSubject string        `yaml:"mail_subject"`
}

type Argon2Config struct {
	Memory      uint32 `yaml:"memory"`
	Iterations  uint32 `yaml:"iterations"`
	Parallelism uint8  `yaml:"parallelism"`
}

type TokenConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	KeySource  string        `yaml:"key_source"`
	SecretName string        `yaml:"secret_name"`
	// KMSCiphertext is the base64 CiphertextBlob of the signing key.
	KMSCiphertext string `yaml:"kms_ciphertext"`
	StaticKey     string `yaml:"static_key"`
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	Redis    RedisConfig    `yaml:"redis"`
	Scylla   ScyllaConfig   `yaml:"scylla"`
}

type DynamoDBConfig struct {
	Table    string `yaml:"table"`
	Endpoint string `yaml:"endpoint"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type ScyllaConfig struct {
	Nodes    []string `yaml:"nodes"`
	Keyspace string   `yaml:"keyspace"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

type MailConfig struct {
	Backend          string     `yaml:"backend"`
	From             string     `yaml:"from"`
	ConfigurationSet string     `yaml:"configuration_set"`
	SMTP             SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type AWSConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type AuditConfig struct {
	Sinks         []string            `yaml:"sinks"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Clickhouse    ClickhouseConfig    `yaml:"clickhouse"`
	Buckets       int                 `yaml:"buckets"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ElasticsearchConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"`
}

type ClickhouseConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// NewDefaultConfig returns the configuration used when nothing is overridden.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Port:               8080,
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			IdleTimeout:        60 * time.Second,
			RequestTimeout:     30 * time.Second,
			CORSAllowedOrigins: []string{"*"},
			TLS: TLSConfig{
				AutoCertDir: "certs",
				DevHosts:    []string{"localhost", "127.0.0.1"},
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		OTP: OTPConfig{
			TTL:           5 * time.Minute,
			HashAlgorithm: "bcrypt",
			BcryptCost:    10,
			Argon2: Argon2Config{
				Memory:      64 * 1024,
				Iterations:  1,
				Parallelism: 2,
			},
			IssueWindow: 15 * time.Minute,
			MailSubject: "Your admin panel sign-in code",
		},
		Token: TokenConfig{
			TTL:       time.Hour,
			Issuer:    "admin-auth",
			Audience:  "admin-panel",
			KeySource: KeySourceStatic,
			StaticKey: devSigningKey,
		},
		Store: StoreConfig{
			Backend:  StoreDynamoDB,
			DynamoDB: DynamoDBConfig{Table: "otp-records"},
			Redis:    RedisConfig{URL: "redis://localhost:6379/0", PoolSize: 10},
			Scylla:   ScyllaConfig{Nodes: []string{"localhost:9042"}, Keyspace: "admin_auth"},
		},
		Mail: MailConfig{
			Backend: MailLog,
			From:    "no-reply@localhost",
			SMTP:    SMTPConfig{Port: 587},
		},
		AWS: AWSConfig{Region: "us-east-1"},
		Audit: AuditConfig{
			Kafka:         KafkaConfig{Topic: "auth-events"},
			Elasticsearch: ElasticsearchConfig{Index: "auth-events"},
			Clickhouse:    ClickhouseConfig{Database: "default", Table: "auth_events"},
			Buckets:       16,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// named by CONFIG_FILE, a .env file and finally the process environment.
func LoadConfig() (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := NewDefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	var errs []string
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitList(v)
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}

	str("ENVIRONMENT", &cfg.Environment)
	num("PORT", &cfg.Server.Port)
	dur("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	dur("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	dur("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	dur("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	list("CORS_ALLOWED_ORIGINS", &cfg.Server.CORSAllowedOrigins)
	flag("TLS_ENABLED", &cfg.Server.TLS.Enabled)
	str("TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	str("TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	str("TLS_AUTOCERT_HOST", &cfg.Server.TLS.AutoCertHost)
	str("TLS_AUTOCERT_DIR", &cfg.Server.TLS.AutoCertDir)
	str("TLS_AUTOCERT_EMAIL", &cfg.Server.TLS.AutoCertEmail)
	list("TLS_DEV_HOSTS", &cfg.Server.TLS.DevHosts)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	dur("OTP_TTL", &cfg.OTP.TTL)
	str("OTP_HASH_ALGORITHM", &cfg.OTP.HashAlgorithm)
	num("OTP_BCRYPT_COST", &cfg.OTP.BcryptCost)
	flag("OTP_SINGLE_USE", &cfg.OTP.SingleUse)
	num("OTP_ISSUE_LIMIT", &cfg.OTP.IssueLimit)
	dur("OTP_ISSUE_WINDOW", &cfg.OTP.IssueWindow)
	str("OTP_MAIL_SUBJECT", &cfg.OTP.MailSubject)

	dur("TOKEN_TTL", &cfg.Token.TTL)
	str("TOKEN_ISSUER", &cfg.Token.Issuer)
	str("TOKEN_AUDIENCE", &cfg.Token.Audience)
	str("SIGNING_KEY_SOURCE", &cfg.Token.KeySource)
	str("SIGNING_KEY_SECRET_NAME", &cfg.Token.SecretName)
	str("SIGNING_KEY_KMS_CIPHERTEXT", &cfg.Token.KMSCiphertext)
	str("SIGNING_KEY", &cfg.Token.StaticKey)

	str("STORE_BACKEND", &cfg.Store.Backend)
	str("DYNAMODB_TABLE", &cfg.Store.DynamoDB.Table)
	str("DYNAMODB_ENDPOINT", &cfg.Store.DynamoDB.Endpoint)
	str("REDIS_URL", &cfg.Store.Redis.URL)
	str("REDIS_PASSWORD", &cfg.Store.Redis.Password)
	num("REDIS_DB", &cfg.Store.Redis.DB)
	num("REDIS_POOL_SIZE", &cfg.Store.Redis.PoolSize)
	list("SCYLLA_NODES", &cfg.Store.Scylla.Nodes)
	str("SCYLLA_KEYSPACE", &cfg.Store.Scylla.Keyspace)
	str("SCYLLA_USERNAME", &cfg.Store.Scylla.Username)
	str("SCYLLA_PASSWORD", &cfg.Store.Scylla.Password)

	str("MAIL_BACKEND", &cfg.Mail.Backend)
	str("MAIL_FROM", &cfg.Mail.From)
	str("SES_CONFIGURATION_SET", &cfg.Mail.ConfigurationSet)
	str("SMTP_HOST", &cfg.Mail.SMTP.Host)
	num("SMTP_PORT", &cfg.Mail.SMTP.Port)
	str("SMTP_USERNAME", &cfg.Mail.SMTP.Username)
	str("SMTP_PASSWORD", &cfg.Mail.SMTP.Password)

	str("AWS_REGION", &cfg.AWS.Region)
	str("AWS_ENDPOINT_URL", &cfg.AWS.Endpoint)

	list("AUDIT_SINKS", &cfg.Audit.Sinks)
	list("KAFKA_BROKERS", &cfg.Audit.Kafka.Brokers)
	str("KAFKA_TOPIC", &cfg.Audit.Kafka.Topic)
	str("ELASTICSEARCH_URL", &cfg.Audit.Elasticsearch.URL)
	str("ELASTICSEARCH_USERNAME", &cfg.Audit.Elasticsearch.Username)
	str("ELASTICSEARCH_PASSWORD", &cfg.Audit.Elasticsearch.Password)
	str("ELASTICSEARCH_INDEX", &cfg.Audit.Elasticsearch.Index)
	str("CLICKHOUSE_URL", &cfg.Audit.Clickhouse.URL)
	str("CLICKHOUSE_USERNAME", &cfg.Audit.Clickhouse.Username)
	str("CLICKHOUSE_PASSWORD", &cfg.Audit.Clickhouse.Password)
	str("CLICKHOUSE_DATABASE", &cfg.Audit.Clickhouse.Database)
	str("CLICKHOUSE_TABLE", &cfg.Audit.Clickhouse.Table)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate returns every problem found; an empty slice means the config is usable.
func (c *Config) Validate() []string {
	var problems []string

	if c.OTP.TTL <= 0 {
		problems = append(problems, "otp.ttl must be positive")
	}
	if c.Token.TTL <= 0 {
		problems = append(problems, "token.ttl must be positive")
	}
	switch c.OTP.HashAlgorithm {
	case "bcrypt", "argon2id":
	default:
		problems = append(problems, fmt.Sprintf("unsupported otp.hash_algorithm %q", c.OTP.HashAlgorithm))
	}
	if c.OTP.IssueLimit > 0 && c.OTP.IssueWindow <= 0 {
		problems = append(problems, "otp.issue_window must be positive when issue_limit is set")
	}

	switch c.Token.KeySource {
	case KeySourceSecretsManager:
		if c.Token.SecretName == "" {
			problems = append(problems, "token.secret_name is required for secretsmanager")
		}
	case KeySourceKMS:
		if c.Token.KMSCiphertext == "" {
			problems = append(problems, "token.kms_ciphertext is required for kms")
		}
	case KeySourceStatic:
		if c.Token.StaticKey == "" {
			problems = append(problems, "token.static_key is required for static")
		}
		if c.IsProduction() {
			problems = append(problems, "static signing key is not allowed in production")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported token.key_source %q", c.Token.KeySource))
	}

	switch c.Store.Backend {
	case StoreDynamoDB:
		if c.Store.DynamoDB.Table == "" {
			problems = append(problems, "store.dynamodb.table is required")
		}
	case StoreRedis:
		if c.Store.Redis.URL == "" {
			problems = append(problems, "store.redis.url is required")
		}
	case StoreScylla:
		if len(c.Store.Scylla.Nodes) == 0 {
			problems = append(problems, "store.scylla.nodes is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported store.backend %q", c.Store.Backend))
	}

	switch c.Mail.Backend {
	case MailSES:
	case MailSMTP:
		if c.Mail.SMTP.Host == "" {
			problems = append(problems, "mail.smtp.host is required for smtp")
		}
	case MailLog:
		if c.IsProduction() {
			problems = append(problems, "log mail backend is not allowed in production")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported mail.backend %q", c.Mail.Backend))
	}
	if c.Mail.From == "" {
		problems = append(problems, "mail.from is required")
	}

	if t := c.Server.TLS; t.Enabled {
		if (t.CertFile == "") != (t.KeyFile == "") {
			problems = append(problems, "server.tls.cert_file and key_file must be set together")
		}
		if c.IsProduction() && t.CertFile == "" && t.AutoCertHost == "" {
			problems = append(problems, "self-signed certificates are not allowed in production")
		}
	}

	return problems
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// GetServerAddress returns the listen address of the local HTTP server.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// AuditEnabled reports whether the named sink is configured.
func (c *Config) AuditEnabled(sink string) bool {
	for _, s := range c.Audit.Sinks {
		if strings.EqualFold(s, sink) {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
