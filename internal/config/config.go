package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL      string
	HTTPAddr         string
	LogLevel         string
	Env              string // dev|prod
	SentryDSN        string
	SessionSecret    string
	BotToken         string // optional: moderator notifications are off without it
	ModeratorChatIDs []int64
	// AdminEmails and ModeratorEmails receive their platform role at signup and on startup.
	AdminEmails      []string
	ModeratorEmails  []string
	DigestInterval   time.Duration
	Location         *time.Location
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Europe/Moscow")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	chatIDs, err := parseIDs(os.Getenv("MODERATOR_CHAT_IDS"))
	if err != nil {
		return nil, fmt.Errorf("MODERATOR_CHAT_IDS: %w", err)
	}

	admins, err := parseEmails(os.Getenv("ADMIN_EMAILS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_EMAILS: %w", err)
	}
	moderators, err := parseEmails(os.Getenv("MODERATOR_EMAILS"))
	if err != nil {
		return nil, fmt.Errorf("MODERATOR_EMAILS: %w", err)
	}

	digest, err := time.ParseDuration(getenv("DIGEST_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("DIGEST_INTERVAL: %w", err)
	}

	cfg := &Config{
		DatabaseURL:      mustEnv("DATABASE_URL"),
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		Env:              getenv("ENV", "dev"),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SessionSecret:    mustEnv("SESSION_SECRET"),
		BotToken:         os.Getenv("BOT_TOKEN"),
		ModeratorChatIDs: chatIDs,
		AdminEmails:      admins,
		ModeratorEmails:  moderators,
		DigestInterval:   digest,
		Location:         loc,
	}
	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET: need at least 32 bytes, got %d", len(cfg.SessionSecret))
	}
	return cfg, nil
}

// Prod reports whether cookies must be Secure and logs JSON-encoded.
func (c *Config) Prod() bool { return strings.EqualFold(c.Env, "prod") }

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseEmails accepts commas, semicolons or whitespace between addresses.
func parseEmails(s string) ([]string, error) {
	s = strings.NewReplacer("\n", ",", "\t", ",", " ", ",", ";", ",").Replace(s)
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if at := strings.IndexByte(p, '@'); at <= 0 || at == len(p)-1 {
			return nil, fmt.Errorf("bad email %q", p)
		}
		out = append(out, p)
	}
	return out, nil
}
