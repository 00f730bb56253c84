package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string
	SNSTopicARN    string // optional; ledger events are dropped when empty

	JWTPrivateKeyPath  string
	JWTPublicKeyPath   string
	JWTExpiry          time.Duration
	RefreshTokenExpiry time.Duration

	PublicBaseURL string // prefix of every QR payload and referral link
	FallbackURL   string // redirect target for unknown QR codes
	LandingURL    string // redirect target after a referral visit

	Ledger LedgerPolicy

	StoreTimeout       time.Duration
	EngagementEventTTL time.Duration

	AllowedOrigins []string // CORS allowed origins
	TrustedProxies []string // CIDRs or addresses whose forwarding headers are believed
}

// LedgerPolicy holds the point award constants.
type LedgerPolicy struct {
	ShareCooldown  time.Duration
	SharePoints    int64
	ReferralPoints int64
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users               string
	Sessions            string
	Identities          string
	Codes               string
	ScanStats           string
	EngagementEvents    string
	UserPoints          string
	ReferralConversions string
	AuditLogs           string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:               getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:            getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Identities:          getEnv("DYNAMO_TABLE_IDENTITIES", "identities"),
			Codes:               getEnv("DYNAMO_TABLE_CODES", "codes"),
			ScanStats:           getEnv("DYNAMO_TABLE_SCAN_STATS", "scan_stats"),
			EngagementEvents:    getEnv("DYNAMO_TABLE_ENGAGEMENT_EVENTS", "engagement_events"),
			UserPoints:          getEnv("DYNAMO_TABLE_USER_POINTS", "user_points"),
			ReferralConversions: getEnv("DYNAMO_TABLE_REFERRAL_CONVERSIONS", "referral_conversions"),
			AuditLogs:           getEnv("DYNAMO_TABLE_AUDIT_LOGS", "audit_logs"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "qr-nexus-codes"),
		SNSTopicARN:  getEnv("SNS_TOPIC_ARN", ""),

		JWTPrivateKeyPath:  getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:   getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:          time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24*7)) * time.Hour,
		RefreshTokenExpiry: time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30)) * 24 * time.Hour,

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		FallbackURL:   getEnv("FALLBACK_URL", "http://localhost:3000/"),
		LandingURL:    getEnv("LANDING_URL", "http://localhost:3000/"),

		Ledger: LedgerPolicy{
			ShareCooldown:  getEnvDuration("SHARE_COOLDOWN", 24*time.Hour),
			SharePoints:    int64(getEnvInt("SHARE_POINTS", 10)),
			ReferralPoints: int64(getEnvInt("REFERRAL_POINTS", 50)),
		},

		StoreTimeout:       getEnvDuration("STORE_TIMEOUT", 3*time.Second),
		EngagementEventTTL: getEnvDuration("ENGAGEMENT_EVENT_TTL", 90*24*time.Hour),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
	}
}

// Validate reports every invalid setting at once so a misconfigured
// deployment fails at startup instead of on the first request.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.AppPort != "", "APP_PORT must be set")
	check(c.AWSRegion != "", "AWS_REGION must be set")
	check(c.S3BucketName != "", "S3_BUCKET_NAME must be set")
	check(c.JWTPrivateKeyPath != "", "JWT_PRIVATE_KEY_PATH must be set")
	check(c.JWTPublicKeyPath != "", "JWT_PUBLIC_KEY_PATH must be set")
	check(c.JWTExpiry > 0, "JWT_EXPIRY_HOURS must be positive")
	check(c.RefreshTokenExpiry > 0, "REFRESH_TOKEN_EXPIRY_DAYS must be positive")

	for _, t := range []struct{ name, value string }{
		{"DYNAMO_TABLE_USERS", c.DynamoTables.Users},
		{"DYNAMO_TABLE_SESSIONS", c.DynamoTables.Sessions},
		{"DYNAMO_TABLE_IDENTITIES", c.DynamoTables.Identities},
		{"DYNAMO_TABLE_CODES", c.DynamoTables.Codes},
		{"DYNAMO_TABLE_SCAN_STATS", c.DynamoTables.ScanStats},
		{"DYNAMO_TABLE_ENGAGEMENT_EVENTS", c.DynamoTables.EngagementEvents},
		{"DYNAMO_TABLE_USER_POINTS", c.DynamoTables.UserPoints},
		{"DYNAMO_TABLE_REFERRAL_CONVERSIONS", c.DynamoTables.ReferralConversions},
		{"DYNAMO_TABLE_AUDIT_LOGS", c.DynamoTables.AuditLogs},
	} {
		check(t.value != "", "%s must not be empty", t.name)
	}

	for _, u := range []struct{ name, value string }{
		{"PUBLIC_BASE_URL", c.PublicBaseURL},
		{"FALLBACK_URL", c.FallbackURL},
		{"LANDING_URL", c.LandingURL},
	} {
		check(isAbsoluteURL(u.value), "%s must be an absolute http(s) URL, got %q", u.name, u.value)
	}
	if c.AWSEndpointURL != "" {
		check(isAbsoluteURL(c.AWSEndpointURL), "AWS_ENDPOINT_URL must be an absolute URL, got %q", c.AWSEndpointURL)
	}

	check(c.Ledger.ShareCooldown > 0, "SHARE_COOLDOWN must be positive")
	check(c.Ledger.SharePoints > 0, "SHARE_POINTS must be positive")
	check(c.Ledger.ReferralPoints > 0, "REFERRAL_POINTS must be positive")
	check(c.StoreTimeout > 0, "STORE_TIMEOUT must be positive")
	check(c.EngagementEventTTL > 0, "ENGAGEMENT_EVENT_TTL must be positive")

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single-host
// prefix. Unparseable entries are skipped and reported in the error.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var (
		prefixes []netip.Prefix
		errs     []error
	)
	for _, raw := range c.TrustedProxies {
		if p, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(raw); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
			continue
		}
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES entry %q is neither a CIDR nor an IP address", raw))
	}
	return prefixes, errors.Join(errs...)
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getEnvDuration accepts Go duration strings ("36h", "90s").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
