package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"golang.org/x/sync/errgroup"

	"admin-auth/internal/audit"
	"admin-auth/internal/bucketing"
	"admin-auth/internal/client"
	"admin-auth/internal/config"
	"admin-auth/internal/hashing"
	"admin-auth/internal/mailer"
	"admin-auth/internal/repository"
	dynamostore "admin-auth/internal/repository/dynamodb"
	redisstore "admin-auth/internal/repository/redis"
	"admin-auth/internal/repository/scylla"
	"admin-auth/internal/secrets"
	"admin-auth/internal/service"
	"admin-auth/internal/token"
	"admin-auth/internal/util"
)

const initTimeout = 30 * time.Second

// Factory builds every dependency lazily, once per process. A Lambda cold
// start only pays for what its component needs.
type Factory struct {
	config *config.Config
	mu     sync.Mutex

	// Clients
	awsConfig        *aws.Config
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Collaborators
	store    repository.OTPStore
	hasher   *hashing.Hasher
	keys     *secrets.CachedProvider
	tokens   *token.Manager
	mailer   mailer.Dispatcher
	throttle service.Throttle
	recorder *audit.Recorder

	closeOnce sync.Once
}

// New loads configuration, initializes logging and returns a factory.
func New() (*Factory, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	return NewWithConfig(cfg), nil
}

func NewWithConfig(cfg *config.Config) *Factory {
	util.Info("Factory initialized",
		util.String("environment", cfg.Environment),
		util.String("store_backend", cfg.Store.Backend),
		util.String("mail_backend", cfg.Mail.Backend),
		util.String("key_source", cfg.Token.KeySource),
		util.Strings("audit_sinks", cfg.Audit.Sinks),
	)
	return &Factory{config: cfg}
}

func (f *Factory) Config() *config.Config {
	return f.config
}

// ==============================
// Components
// ==============================

func (f *Factory) Issuer(ctx context.Context) (*service.Issuer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	store, err := f.otpStore(ctx)
	if err != nil {
		return nil, err
	}
	hasher, err := f.otpHasher()
	if err != nil {
		return nil, err
	}
	dispatcher, err := f.mailDispatcher(ctx)
	if err != nil {
		return nil, err
	}
	throttle, err := f.issueThrottle(ctx)
	if err != nil {
		return nil, err
	}

	return service.NewIssuer(f.config.OTP, service.IssuerDeps{
		Store:    store,
		Hasher:   hasher,
		Mailer:   dispatcher,
		Throttle: throttle,
		Auditor:  f.auditRecorder(ctx),
	}), nil
}

func (f *Factory) Verifier(ctx context.Context) (*service.Verifier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	store, err := f.otpStore(ctx)
	if err != nil {
		return nil, err
	}
	hasher, err := f.otpHasher()
	if err != nil {
		return nil, err
	}
	keys, err := f.keyProvider(ctx)
	if err != nil {
		return nil, err
	}

	return service.NewVerifier(f.config.OTP, service.VerifierDeps{
		Store:   store,
		Hasher:  hasher,
		Keys:    keys,
		Tokens:  f.tokenManager(),
		Auditor: f.auditRecorder(ctx),
	}), nil
}

func (f *Factory) Authorizer(ctx context.Context) (*service.Authorizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys, err := f.keyProvider(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewAuthorizer(keys, f.tokenManager()), nil
}

// Warm probes the store and loads the signing key in parallel so the first
// request does not pay for them. Failures are returned, not fatal.
func (f *Factory) Warm(ctx context.Context, store, key bool) error {
	g, ctx := errgroup.WithContext(ctx)

	if store {
		g.Go(func() error {
			f.mu.Lock()
			s, err := f.otpStore(ctx)
			f.mu.Unlock()
			if err != nil {
				return err
			}
			if hc, ok := s.(repository.HealthChecker); ok {
				return hc.HealthCheck(ctx)
			}
			return nil
		})
	}
	if key {
		g.Go(func() error {
			f.mu.Lock()
			keys, err := f.keyProvider(ctx)
			f.mu.Unlock()
			if err != nil {
				return err
			}
			_, err = keys.SigningKey(ctx)
			return err
		})
	}

	return g.Wait()
}

// ==============================
// Lazy builders. Callers hold f.mu.
// ==============================

func (f *Factory) loadAWS(ctx context.Context) (aws.Config, error) {
	if f.awsConfig == nil {
		cfg, err := client.LoadAWSConfig(ctx, f.config.AWS)
		if err != nil {
			return aws.Config{}, err
		}
		f.awsConfig = &cfg
	}
	return *f.awsConfig, nil
}

func (f *Factory) redis(ctx context.Context) (*client.RedisClient, error) {
	if f.redisClient == nil {
		ctx, cancel := context.WithTimeout(ctx, initTimeout)
		defer cancel()
		c, err := client.NewRedisClient(ctx, f.config.Store.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		f.redisClient = c
	}
	return f.redisClient, nil
}

func (f *Factory) otpStore(ctx context.Context) (repository.OTPStore, error) {
	if f.store != nil {
		return f.store, nil
	}

	cfg := f.config.Store
	switch cfg.Backend {
	case config.StoreDynamoDB:
		awsCfg, err := f.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		f.store = dynamostore.NewOTPStore(dynamostore.NewClient(awsCfg, cfg.DynamoDB.Endpoint), cfg.DynamoDB.Table)

	case config.StoreRedis:
		c, err := f.redis(ctx)
		if err != nil {
			return nil, err
		}
		f.store = redisstore.NewOTPCache(c)

	case config.StoreScylla:
		c, err := scylla.NewScyllaClient(cfg.Scylla, f.config.IsDevelopment())
		if err != nil {
			return nil, fmt.Errorf("scylla: %w", err)
		}
		if f.config.IsDevelopment() {
			if err := c.EnsureSchema(ctx); err != nil {
				c.Close()
				return nil, err
			}
		}
		f.scyllaClient = c
		f.store = scylla.NewOTPRepository(c)

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}

	util.Info("OTP store initialized", util.String("backend", cfg.Backend))
	return f.store, nil
}

func (f *Factory) otpHasher() (*hashing.Hasher, error) {
	if f.hasher == nil {
		h, err := hashing.NewHasher(f.config.OTP)
		if err != nil {
			return nil, err
		}
		f.hasher = h
	}
	return f.hasher, nil
}

func (f *Factory) keyProvider(ctx context.Context) (*secrets.CachedProvider, error) {
	if f.keys != nil {
		return f.keys, nil
	}

	var clients secrets.Clients
	switch f.config.Token.KeySource {
	case config.KeySourceSecretsManager, config.KeySourceKMS:
		awsCfg, err := f.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		clients.SecretsManager = secretsmanager.NewFromConfig(awsCfg)
		clients.KMS = kms.NewFromConfig(awsCfg)
	}

	keys, err := secrets.NewProvider(f.config.Token, clients)
	if err != nil {
		return nil, err
	}
	f.keys = keys
	return f.keys, nil
}

func (f *Factory) tokenManager() *token.Manager {
	if f.tokens == nil {
		f.tokens = token.NewManager(f.config.Token)
	}
	return f.tokens
}

func (f *Factory) mailDispatcher(ctx context.Context) (mailer.Dispatcher, error) {
	if f.mailer != nil {
		return f.mailer, nil
	}

	var ses mailer.SESAPI
	if f.config.Mail.Backend == config.MailSES {
		awsCfg, err := f.loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		ses = sesv2.NewFromConfig(awsCfg)
	}

	d, err := mailer.NewDispatcher(f.config.Mail, ses)
	if err != nil {
		return nil, err
	}
	f.mailer = d
	return f.mailer, nil
}

// issueThrottle returns nil when throttling is disabled.
func (f *Factory) issueThrottle(ctx context.Context) (service.Throttle, error) {
	if f.config.OTP.IssueLimit <= 0 {
		return nil, nil
	}
	if f.throttle == nil {
		c, err := f.redis(ctx)
		if err != nil {
			return nil, err
		}
		f.throttle = redisstore.NewRateLimitCache(c, f.config.OTP.IssueLimit, f.config.OTP.IssueWindow)
	}
	return f.throttle, nil
}

// auditRecorder never fails: a sink that cannot be built is skipped.
func (f *Factory) auditRecorder(ctx context.Context) *audit.Recorder {
	if f.recorder != nil {
		return f.recorder
	}

	cfg := f.config.Audit
	var sinks []audit.Sink

	if f.config.AuditEnabled("kafka") {
		if producer, err := client.NewKafkaProducer(cfg.Kafka); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			sinks = append(sinks, audit.NewKafkaSink(producer))
		}
	}

	if f.config.AuditEnabled("elasticsearch") {
		if es, err := client.NewElasticsearchClient(cfg.Elasticsearch, f.config.IsDevelopment()); err != nil {
			util.Warn("Elasticsearch initialization failed - proceeding without it", util.ErrorField(err))
		} else {
			f.esClient = es
			sinks = append(sinks, audit.NewElasticsearchSink(es, cfg.Elasticsearch.Index))
		}
	}

	if f.config.AuditEnabled("clickhouse") {
		initCtx, cancel := context.WithTimeout(ctx, initTimeout)
		ch, err := client.NewClickHouseClient(initCtx, cfg.Clickhouse, f.config.IsProduction())
		cancel()
		if err != nil {
			util.Warn("ClickHouse initialization failed - proceeding without it", util.ErrorField(err))
		} else {
			f.clickhouseClient = ch
			sinks = append(sinks, audit.NewClickhouseSink(ch, cfg.Clickhouse.Table))
		}
	}

	f.recorder = audit.NewRecorder(bucketing.NewManager(cfg.Buckets), sinks...)

	names := make([]string, 0, len(sinks))
	for _, sink := range f.recorder.Sinks() {
		names = append(names, sink.Name())
	}
	util.Info("Audit recorder initialized", util.Strings("sinks", names))
	return f.recorder
}

// ==============================
// Health Checks
// ==============================

// HealthCheck probes every dependency built so far.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	f.mu.Lock()
	store := f.store
	redisClient := f.redisClient
	kafkaProducer := f.kafkaProducer
	esClient := f.esClient
	clickhouseClient := f.clickhouseClient
	f.mu.Unlock()

	healthErrors := make(map[string]error)

	if store == nil {
		healthErrors["store"] = errors.New("otp store not initialized")
	} else if hc, ok := store.(repository.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			healthErrors["store"] = err
		}
	}

	if redisClient != nil {
		if err := redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}
	if esClient != nil {
		if err := esClient.HealthCheck(ctx); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	if clickhouseClient != nil {
		if err := clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	return healthErrors
}

// HealthReport probes every dependency and reports whether the service can
// take traffic. Audit sinks are best effort and never make it unhealthy.
func (f *Factory) HealthReport(ctx context.Context) (bool, map[string]error) {
	failures := f.HealthCheck(ctx)
	for name := range failures {
		switch name {
		case "kafka", "elasticsearch", "clickhouse":
		default:
			return false, failures
		}
	}
	return true, failures
}

// DrainAudit waits for audit writes still in flight.
func (f *Factory) DrainAudit(ctx context.Context) {
	f.mu.Lock()
	recorder := f.recorder
	f.mu.Unlock()
	if recorder == nil {
		return
	}
	if err := recorder.Wait(ctx); err != nil {
		util.Warn("Audit events still in flight", util.ErrorField(err))
	}
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		f.DrainAudit(drainCtx)
		cancel()

		f.mu.Lock()
		defer f.mu.Unlock()

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})

	return nil
}
