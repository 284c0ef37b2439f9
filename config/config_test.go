package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/config"
)

func noDotEnv(t *testing.T) []string {
	return []string{filepath.Join(t.TempDir(), "missing.env")}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(config.Options{DotEnv: noDotEnv(t)})
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, auth.DefaultTokenExpiration, cfg.GetTokenExpiration())
	assert.Equal(t, 24*time.Hour, cfg.GetVerificationTTL())
	assert.Equal(t, time.Hour, cfg.GetResetTTL())
	assert.Equal(t, "token", cfg.GetCookieName())
	assert.Equal(t, auth.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, config.TransportLog, cfg.Mail.Transport)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Mail.Kafka.Brokers)
	assert.Equal(t, auth.DefaultClientURL, cfg.GetClientURL())
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	t.Setenv("AUTHFLOW_TOKEN__SIGNING_KEY", "s3cret")
	t.Setenv("AUTHFLOW_LIFECYCLE__RESET_TTL", "30m")
	t.Setenv("AUTHFLOW_STORE__DRIVER", "Postgres")

	cfg, err := config.Load(config.Options{DotEnv: noDotEnv(t)})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.GetSigningKey())
	assert.Equal(t, 30*time.Minute, cfg.GetResetTTL())
	assert.Equal(t, auth.DriverPostgres, cfg.Store.Driver)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	t.Setenv("PORT", "5000")
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("CLIENT_URL", "https://app.example.com")

	cfg, err := config.Load(config.Options{DotEnv: noDotEnv(t)})
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "legacy", cfg.GetSigningKey())
	assert.True(t, auth.IsProduction(cfg.GetEnvironment()))
	assert.Equal(t, "https://app.example.com", cfg.GetClientURL())
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
token:
  signing_key: from-file
mail:
  transport: smtp
`), 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--port", "9090"}))

	cfg, err := config.Load(config.Options{File: path, DotEnv: noDotEnv(t), Flags: fs})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.GetSigningKey())
	assert.Equal(t, config.TransportSMTP, cfg.Mail.Transport)
	// unchanged flags keep lower layers
	assert.Equal(t, auth.DriverSQLite, cfg.Store.Driver)
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AUTHFLOW_TOKEN__ISSUER=dotenv-issuer\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AUTHFLOW_TOKEN__ISSUER") })

	cfg, err := config.Load(config.Options{DotEnv: []string{path}})
	require.NoError(t, err)

	assert.Equal(t, "dotenv-issuer", cfg.GetIssuer())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(config.Options{File: "/nonexistent/authflow.yaml", DotEnv: noDotEnv(t)})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load(config.Options{DotEnv: noDotEnv(t)})
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Contains(t, richErr.Metadata, "token.signing_key")

	cfg.Token.SigningKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.Store.Driver = "redis"
	err = cfg.Validate()
	require.Error(t, err)
	require.True(t, goerrors.As(err, &richErr))
	assert.Contains(t, richErr.Metadata, "store.driver")

	cfg.Store.Driver = auth.DriverPostgres
	cfg.Store.DSN = ""
	err = cfg.Validate()
	require.Error(t, err)
}
