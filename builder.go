package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/mvachell/authcore/internal/audit"
	"github.com/mvachell/authcore/internal/rate"
	"github.com/mvachell/authcore/password"
	"github.com/mvachell/authcore/session"
	"github.com/mvachell/authcore/token"
)

// Builder assembles an [Engine] from a config, a Redis client, and a
// caller-supplied [SubjectProvider].
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	subjectProvider SubjectProvider
	auditSink       AuditSink
	rateStore       rate.CounterStore

	built bool
}

// New creates a [Builder] preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the full configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTokenSecret sets the HMAC signing secret without replacing the
// rest of the configuration.
func (b *Builder) WithTokenSecret(secret []byte) *Builder {
	b.config.Token.Secret = cloneBytes(secret)
	return b
}

// WithRedis sets the Redis client backing sessions and, unless
// overridden by [Builder.WithRateLimitStore], rate limit counters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSubjectProvider sets the account lookup implementation. Required.
func (b *Builder) WithSubjectProvider(sp SubjectProvider) *Builder {
	b.subjectProvider = sp
	return b
}

// WithAuditSink sets the audit event consumer and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithRateLimitStore overrides the rate limit counter backend. Useful
// for single-node deployments that want the in-process store.
func (b *Builder) WithRateLimitStore(store rate.CounterStore) *Builder {
	b.rateStore = store
	return b
}

// WithMetricsEnabled toggles counter collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles check-session latency buckets.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A builder
// can only be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.subjectProvider == nil {
		return nil, errors.New("subject provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:          cfg,
		subjectProvider: b.subjectProvider,
	}

	engine.sessionStore = session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.TTL)

	rateStore := b.rateStore
	if rateStore == nil {
		rateStore = rate.NewRedisStore(b.redis, "")
	}
	engine.rateLimiter = rate.New(rateStore, rate.Config{
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Window:      cfg.RateLimit.Window,
	})

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.New(password.Config{
		Iterations: cfg.Password.Iterations,
		SaltLength: cfg.Password.SaltLength,
		KeyLength:  cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	tm, err := token.NewManager(token.Config{
		Secret:     cloneBytes(cfg.Token.Secret),
		DefaultTTL: cfg.Token.TTL,
		Issuer:     cfg.Token.Issuer,
		Leeway:     cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokenManager = tm

	b.built = true

	return engine, nil
}
