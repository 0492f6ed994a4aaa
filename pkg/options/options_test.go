package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	groups := []IOptions{
		NewApiOptions(),
		NewAuthOptions(),
		NewMqttOptions(),
		NewS3Options(),
		NewHttpOptions(),
		NewSessionOptions(),
		NewTelemetryOptions(),
	}
	for _, g := range groups {
		assert.Empty(t, g.Validate(), "%T", g)
	}
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://api.cartrack.io", "http", "https"))
	assert.Error(t, ValidateURL("https://", "https"))
	assert.Error(t, ValidateURL("ftp://host", "http", "https"))
	assert.Error(t, ValidateURL("://bad", "http"))
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("127.0.0.1:8787"))
	assert.NoError(t, ValidateAddress(":8787"))
	assert.NoError(t, ValidateAddress("localhost:1"))
	assert.Error(t, ValidateAddress("127.0.0.1"))
	assert.Error(t, ValidateAddress("example.com:80"))
	assert.Error(t, ValidateAddress("127.0.0.1:99999"))
}

func TestDisabledGroupsSkipValidation(t *testing.T) {
	m := NewMqttOptions()
	m.Broker = "not a url"
	assert.NotEmpty(t, m.Validate())
	m.Enabled = false
	assert.Empty(t, m.Validate())

	s := NewS3Options()
	s.BucketName = ""
	assert.Empty(t, s.Validate())
	s.Enabled = true
	assert.Len(t, s.Validate(), 1)
	s.BucketName = "b"
	s.Endpoint = "https://minio.local:9000"
	assert.Len(t, s.Validate(), 1)
}

func TestMqttKeepAliveRange(t *testing.T) {
	m := NewMqttOptions()
	m.KeepAlive = 500 * time.Millisecond
	assert.Len(t, m.Validate(), 1)

	m.KeepAlive = 90 * time.Second
	assert.Empty(t, m.Validate())
	assert.EqualValues(t, 90, m.ToClientConfig().KeepAlive)
}

func TestHttpTimeoutMustBePositive(t *testing.T) {
	h := NewHttpOptions()
	h.Timeout = 0
	assert.Len(t, h.Validate(), 1)
}

func TestAuthRefreshRequiresClient(t *testing.T) {
	o := NewAuthOptions()
	o.RefreshTokenFile = "/var/lib/cartrack/refresh"
	assert.Len(t, o.Validate(), 1)

	o.ClientID = "client"
	assert.Empty(t, o.Validate())

	o.TokenFile = "/run/cartrack/id_token"
	o.ClientID = ""
	assert.Empty(t, o.Validate())
}

func TestFlagsBindFields(t *testing.T) {
	o := NewSessionOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--session.retry-interval=5s", "--session.default-language=de"}))
	assert.Equal(t, 5*time.Second, o.RetryInterval)
	assert.Equal(t, "de", o.DefaultLanguage)

	m := NewMqttOptions()
	cfg := m.ToClientConfig()
	assert.Equal(t, m.Broker, cfg.BrokerURL)
}
