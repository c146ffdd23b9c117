package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"vrcnotify/internal/helper"
)

const defaultVRChatAPIBaseURL = "https://api.vrchat.cloud/api/1"

// Config holds everything the process reads from the environment.
// Loaded once in main and passed down; immutable for the process lifetime.
type Config struct {
	Port string

	// VRChat credentials and target group
	VRCUsername   string
	VRCPassword   string
	VRCTOTPSecret string
	VRCGroupID    string
	VRCBaseURL    string

	// Discord
	DiscordWebhookURL string

	// Polling / login behaviour
	PollInterval    time.Duration
	LoginMaxRetries int
	HTTPTimeout     time.Duration

	// HTTP surface
	CORSAllowOrigins       []string
	RateLimitPerSecond     int
	RateLimitBurst         int
	RateLimitWindowMinutes int

	// Dashboard auth
	JWTSecret             string
	JWTAccessTokenExpiry  time.Duration
	DashboardUsername     string
	DashboardPasswordHash string
}

// Load reads the full configuration from the environment. VRChat credentials
// and the group id are required; everything else has a sane default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          helper.GetEnv("PORT", "2121"),
		VRCUsername:   os.Getenv("VRC_USERNAME"),
		VRCPassword:   os.Getenv("VRC_PASSWORD"),
		VRCTOTPSecret: os.Getenv("VRC_TOTP_SECRET"),
		VRCGroupID:    os.Getenv("VRC_GROUP_ID"),
		VRCBaseURL:    helper.GetEnv("VRC_API_BASE_URL", defaultVRChatAPIBaseURL),

		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),

		PollInterval:    time.Duration(helper.GetEnvAsInt("POLL_INTERVAL_SECONDS", 60)) * time.Second,
		LoginMaxRetries: helper.GetEnvAsInt("LOGIN_MAX_RETRIES", 5),
		HTTPTimeout:     time.Duration(helper.GetEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,

		RateLimitPerSecond:     helper.GetEnvAsInt("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:         helper.GetEnvAsInt("RATE_LIMIT_BURST", 10),
		RateLimitWindowMinutes: helper.GetEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 3),

		JWTSecret:             os.Getenv("JWT_SECRET"),
		DashboardUsername:     os.Getenv("DASHBOARD_USERNAME"),
		DashboardPasswordHash: os.Getenv("DASHBOARD_PASSWORD_HASH"),
	}

	if cfg.VRCUsername == "" || cfg.VRCPassword == "" {
		return nil, errors.New("VRC_USERNAME and VRC_PASSWORD must be set")
	}
	if cfg.VRCGroupID == "" {
		return nil, errors.New("VRC_GROUP_ID is not set")
	}

	// JWT access token expiry (default: 1 hour)
	accessExp := helper.GetEnv("JWT_ACCESS_TOKEN_EXPIRY", "1h")
	exp, err := time.ParseDuration(accessExp)
	if err != nil || exp <= 0 {
		exp = time.Hour
	}
	cfg.JWTAccessTokenExpiry = exp

	for _, o := range strings.Split(os.Getenv("CORS_ALLOW_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowOrigins = append(cfg.CORSAllowOrigins, o)
		}
	}

	return cfg, nil
}
