package config

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 24*time.Hour, cfg.Ledger.ShareCooldown)
	assert.Equal(t, int64(10), cfg.Ledger.SharePoints)
	assert.Equal(t, int64(50), cfg.Ledger.ReferralPoints)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("SHARE_COOLDOWN", "36h")
	t.Setenv("REFERRAL_POINTS", "75")
	t.Setenv("PUBLIC_BASE_URL", "https://qr.example.com/")

	cfg := Load()
	assert.Equal(t, 36*time.Hour, cfg.Ledger.ShareCooldown)
	assert.Equal(t, int64(75), cfg.Ledger.ReferralPoints)
	assert.Equal(t, "https://qr.example.com", cfg.PublicBaseURL, "trailing slash is trimmed")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Load()
	cfg.FallbackURL = "not a url"
	cfg.Ledger.SharePoints = 0
	cfg.DynamoTables.UserPoints = ""
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "FALLBACK_URL")
	assert.ErrorContains(t, err, "SHARE_POINTS")
	assert.ErrorContains(t, err, "DYNAMO_TABLE_USER_POINTS")
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

func TestValidate_RejectsRelativeEndpoint(t *testing.T) {
	cfg := Load()
	cfg.AWSEndpointURL = "localstack:4566"
	assert.ErrorContains(t, cfg.Validate(), "AWS_ENDPOINT_URL")
}

func TestValidate_ErrorOrderIsStable(t *testing.T) {
	cfg := Load()
	cfg.DynamoTables.Users = ""
	cfg.DynamoTables.AuditLogs = ""
	cfg.PublicBaseURL = "x"
	cfg.LandingURL = "y"

	first := cfg.Validate().Error()
	for i := 0; i < 20; i++ {
		require.Equal(t, first, cfg.Validate().Error())
	}
	assert.Less(t, strings.Index(first, "DYNAMO_TABLE_USERS"), strings.Index(first, "DYNAMO_TABLE_AUDIT_LOGS"))
	assert.Less(t, strings.Index(first, "PUBLIC_BASE_URL"), strings.Index(first, "LANDING_URL"))
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7 ,")

	cfg := Load()
	require.Equal(t, []string{"10.0.0.0/8", "192.0.2.7"}, cfg.TrustedProxies)

	prefixes, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.7/32"),
	}, prefixes)
}

func TestValidate_RejectsBadTrustedProxy(t *testing.T) {
	cfg := Load()
	cfg.TrustedProxies = []string{"10.0.0.0/8", "load-balancer"}
	assert.ErrorContains(t, cfg.Validate(), `"load-balancer"`)
}
