// Package config loads service settings from defaults, a .env file, an
// optional YAML file, the environment and command line flags, in that order.
package config

import (
	"os"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	auth "github.com/goliatone/go-authflow"
)

const EnvPrefix = "AUTHFLOW_"

const (
	TransportLog   = "log"
	TransportSMTP  = "smtp"
	TransportKafka = "kafka"

	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Server struct {
	Port        int           `koanf:"port"`
	ReadTimeout time.Duration `koanf:"read_timeout"`
}

type Token struct {
	SigningKey string        `koanf:"signing_key"`
	Expiration time.Duration `koanf:"expiration"`
	Issuer     string        `koanf:"issuer"`
	Audience   []string      `koanf:"audience"`
}

type Session struct {
	CookieName string `koanf:"cookie_name"`
}

type Hashing struct {
	Cost int `koanf:"cost"`
}

type Lifecycle struct {
	VerificationTTL     time.Duration `koanf:"verification_ttl"`
	ResetTTL            time.Duration `koanf:"reset_ttl"`
	ConcealUnknownEmail bool          `koanf:"conceal_unknown_email"`
}

type ServiceSettings struct {
	OperationTimeout time.Duration `koanf:"operation_timeout"`
}

type Store struct {
	Driver        string `koanf:"driver"`
	DSN           string `koanf:"dsn"`
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
}

type SMTP struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

type Kafka struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

type Mail struct {
	Transport   string        `koanf:"transport"`
	From        string        `koanf:"from"`
	FromName    string        `koanf:"from_name"`
	SendTimeout time.Duration `koanf:"send_timeout"`
	SMTP        SMTP          `koanf:"smtp"`
	Kafka       Kafka         `koanf:"kafka"`
}

type Log struct {
	Format    string `koanf:"format"`
	Level     string `koanf:"level"`
	AccessLog bool   `koanf:"access_log"`
}

// Config is the full service configuration. It implements auth.Config.
type Config struct {
	Env       string          `koanf:"env"`
	ClientURL string          `koanf:"client_url"`
	Server    Server          `koanf:"server"`
	Token     Token           `koanf:"token"`
	Session   Session         `koanf:"session"`
	Hashing   Hashing         `koanf:"hashing"`
	Lifecycle Lifecycle       `koanf:"lifecycle"`
	Service   ServiceSettings `koanf:"service"`
	Store     Store           `koanf:"store"`
	Mail      Mail            `koanf:"mail"`
	Log       Log             `koanf:"log"`
}

var _ auth.Config = (*Config)(nil)

// Defaults returns the built in settings
func Defaults() map[string]any {
	return map[string]any{
		"env":                             "development",
		"client_url":                      auth.DefaultClientURL,
		"server.port":                     4000,
		"server.read_timeout":             "15s",
		"token.expiration":                auth.DefaultTokenExpiration.String(),
		"token.issuer":                    "",
		"session.cookie_name":             auth.DefaultCookieName,
		"hashing.cost":                    10,
		"lifecycle.verification_ttl":      auth.DefaultVerificationTTL.String(),
		"lifecycle.reset_ttl":             auth.DefaultResetTTL.String(),
		"lifecycle.conceal_unknown_email": false,
		"service.operation_timeout":       auth.DefaultOperationTimeout.String(),
		"store.driver":                    auth.DriverSQLite,
		"store.dsn":                       "",
		"store.mongo_uri":                 "mongodb://127.0.0.1:27017",
		"store.mongo_database":            "authflow",
		"mail.transport":                  TransportLog,
		"mail.from":                       "test@test.com",
		"mail.from_name":                  "",
		"mail.send_timeout":               "15s",
		"mail.smtp.host":                  "sandbox.smtp.mailtrap.io",
		"mail.smtp.port":                  2525,
		"mail.kafka.brokers":              []string{"localhost:9092"},
		"mail.kafka.topic":                "auth.emails",
		"mail.kafka.group_id":             "authflow-mail",
		"log.format":                      "json",
		"log.level":                       "info",
		"log.access_log":                  true,
	}
}

// legacyEnv maps the unprefixed variable names used by older deployments
var legacyEnv = map[string]string{
	"PORT":          "server.port",
	"CLIENT_URL":    "client_url",
	"JWT_SECRET":    "token.signing_key",
	"NODE_ENV":      "env",
	"MONGO_URI":     "store.mongo_uri",
	"MAILTRAP_USER": "mail.smtp.username",
	"MAILTRAP_PASS": "mail.smtp.password",
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"env":        "env",
	"port":       "server.port",
	"driver":     "store.driver",
	"dsn":        "store.dsn",
	"transport":  "mail.transport",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// RegisterFlags adds the overridable flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env", "", "environment name (production enables secure cookies)")
	fs.Int("port", 0, "HTTP listen port")
	fs.String("driver", "", "account store driver: sqlite, postgres, mongo or memory")
	fs.String("dsn", "", "database DSN for sqlite or postgres")
	fs.String("transport", "", "mail transport: log, smtp or kafka")
	fs.String("log-level", "", "log level")
	fs.String("log-format", "", "log format: json or text")
}

// Options controls Load
type Options struct {
	// File is an optional YAML config file
	File string
	// DotEnv files to load, .env when empty
	DotEnv []string
	// Flags are applied last when set
	Flags *pflag.FlagSet
}

// Load resolves the configuration
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, wrapLoad(err, "defaults")
	}

	loadDotEnv(opts.DotEnv)

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, wrapLoad(err, opts.File)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, wrapLoad(err, "environment")
	}

	if legacy := legacyValues(); len(legacy) > 0 {
		if err := k.Load(confmap.Provider(legacy, "."), nil); err != nil {
			return nil, wrapLoad(err, "legacy environment")
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, wrapLoad(err, "flags")
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode configuration")
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Mail.Transport = strings.ToLower(strings.TrimSpace(cfg.Mail.Transport))

	return cfg, nil
}

// envKey turns AUTHFLOW_TOKEN__SIGNING_KEY into token.signing_key
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func legacyValues() map[string]any {
	out := map[string]any{}
	for name, key := range legacyEnv {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			out[key] = v
		}
	}
	return out
}

func loadDotEnv(files []string) {
	if auth.IsProduction(os.Getenv("ENV")) || auth.IsProduction(os.Getenv("NODE_ENV")) {
		return
	}
	// a missing .env is normal outside development
	_ = godotenv.Load(files...)
}

func wrapLoad(err error, source string) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to load configuration").
		WithMetadata(map[string]any{"source": source})
}

// Validate checks settings the service cannot start without
func (c *Config) Validate() error {
	meta := map[string]any{}

	if strings.TrimSpace(c.Token.SigningKey) == "" {
		meta["token.signing_key"] = "required"
	}

	switch c.Store.Driver {
	case auth.DriverSQLite, auth.DriverPostgres, DriverMongo, DriverMemory:
	default:
		meta["store.driver"] = "unknown driver " + c.Store.Driver
	}

	if c.Store.Driver == auth.DriverPostgres && c.Store.DSN == "" {
		meta["store.dsn"] = "required for postgres"
	}

	switch c.Mail.Transport {
	case TransportLog, TransportSMTP, TransportKafka:
	default:
		meta["mail.transport"] = "unknown transport " + c.Mail.Transport
	}

	if c.Mail.Transport == TransportKafka && len(c.Mail.Kafka.Brokers) == 0 {
		meta["mail.kafka.brokers"] = "required for kafka transport"
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		meta["server.port"] = "out of range"
	}

	if len(meta) > 0 {
		return goerrors.New("invalid configuration", goerrors.CategoryValidation).
			WithTextCode("CONFIG_INVALID").
			WithMetadata(meta)
	}

	return nil
}

func (c *Config) GetEnvironment() string             { return c.Env }
func (c *Config) GetClientURL() string               { return c.ClientURL }
func (c *Config) GetSigningKey() string              { return c.Token.SigningKey }
func (c *Config) GetTokenExpiration() time.Duration  { return c.Token.Expiration }
func (c *Config) GetIssuer() string                  { return c.Token.Issuer }
func (c *Config) GetAudience() []string              { return c.Token.Audience }
func (c *Config) GetCookieName() string              { return c.Session.CookieName }
func (c *Config) GetHashCost() int                   { return c.Hashing.Cost }
func (c *Config) GetVerificationTTL() time.Duration  { return c.Lifecycle.VerificationTTL }
func (c *Config) GetResetTTL() time.Duration         { return c.Lifecycle.ResetTTL }
func (c *Config) GetConcealUnknownEmail() bool       { return c.Lifecycle.ConcealUnknownEmail }
func (c *Config) GetOperationTimeout() time.Duration { return c.Service.OperationTimeout }
