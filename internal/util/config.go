package util

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second
	defaultBodyLimit       = "8M"

	defaultRefreshPath     = "/api/v1/auth/refresh"
	defaultLoginPath       = "/api/v1/auth/login"
	defaultLogoutPath      = "/api/v1/auth/logout"
	defaultUpstreamTimeout = 15 * time.Second

	defaultSessionTTL      = 720 * time.Hour
	defaultAccessCookieTTL = 15 * time.Minute
	defaultSIDCookieName   = "ng_sid"
	defaultTokenCookieName = "ng_access_token"
	defaultSessionBackend  = "redis"

	defaultRateLimit     = 100
	defaultRateInterval  = 1 * time.Minute
	defaultRateBlockTime = 5 * time.Minute

	JWTLeeWay = 5 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	BodyLimit       string
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	bodyLimit := os.Getenv("BODY_LIMIT")
	if bodyLimit == "" {
		bodyLimit = defaultBodyLimit
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
		BodyLimit:       bodyLimit,
	}
}

// UpstreamConfig describes the novels backend the gateway fronts.
type UpstreamConfig struct {
	BaseURL     string
	LoginPath   string
	LogoutPath  string
	RefreshPath string
	Timeout     time.Duration
}

func NewUpstreamConfig() *UpstreamConfig {
	baseURL := os.Getenv("BACKEND_BASE_URL")
	if baseURL == "" {
		log.Fatal("BACKEND_BASE_URL is not set")
	}

	return &UpstreamConfig{
		BaseURL:     baseURL,
		LoginPath:   envOrDefault("BACKEND_LOGIN_PATH", defaultLoginPath),
		LogoutPath:  envOrDefault("BACKEND_LOGOUT_PATH", defaultLogoutPath),
		RefreshPath: envOrDefault("BACKEND_REFRESH_PATH", defaultRefreshPath),
		Timeout:     parseDurationOrDefault("BACKEND_TIMEOUT", defaultUpstreamTimeout),
	}
}

// SessionConfig controls the durable session record and its cookie mirror.
type SessionConfig struct {
	Backend         string
	SessionTTL      time.Duration
	AccessCookieTTL time.Duration
	SIDCookieName   string
	TokenCookieName string
	CookieDomain    string
	CookieSecure    bool
}

func NewSessionConfig() *SessionConfig {
	secure := false
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			secure = b
		} else {
			log.Printf("Invalid COOKIE_SECURE: %s, using default false", v)
		}
	}

	return &SessionConfig{
		Backend:         envOrDefault("SESSION_BACKEND", defaultSessionBackend),
		SessionTTL:      parseDurationOrDefault("SESSION_TTL", defaultSessionTTL),
		AccessCookieTTL: parseDurationOrDefault("ACCESS_COOKIE_TTL", defaultAccessCookieTTL),
		SIDCookieName:   envOrDefault("SID_COOKIE_NAME", defaultSIDCookieName),
		TokenCookieName: envOrDefault("TOKEN_COOKIE_NAME", defaultTokenCookieName),
		CookieDomain:    os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:    secure,
	}
}

type RateLimiterConfig struct {
	Limit     int
	Interval  time.Duration
	BlockTime time.Duration
}

func NewRateLimiterConfig() *RateLimiterConfig {
	limitStr := os.Getenv("RATE_LIMIT_LIMIT")
	limit := defaultRateLimit
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		} else {
			log.Printf("Invalid RATE_LIMIT_LIMIT: %s, using default %d", limitStr, defaultRateLimit)
		}
	}

	interval := parseDurationOrDefault("RATE_LIMIT_INTERVAL", defaultRateInterval)
	blockTime := parseDurationOrDefault("RATE_LIMIT_BLOCK_TIME", defaultRateBlockTime)

	return &RateLimiterConfig{
		Limit:     limit,
		Interval:  interval,
		BlockTime: blockTime,
	}
}

func GetWebhookURL() string {
	return os.Getenv("WEBHOOK_URL")
}

func envOrDefault(varName, def string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}
