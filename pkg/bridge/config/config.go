package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// PublicHost is the externally reachable host for the media-stream
	// WebSocket URL embedded in call-control markup (no scheme).
	PublicHost string

	// Real-time AI endpoint.
	RealtimeURL     string
	RealtimeAPIKey  string
	RealtimeModel   string
	RealtimeVoice   string
	RealtimeConnect time.Duration

	// Telephony.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	ForwardingNumber string
	DialTimeout      time.Duration
	Greeting         string

	// Calendar. Either a credentials file or the OAuth client triple
	// (id, secret, refresh token) enables booking.
	CalendarID            string
	GoogleCredentialsFile string
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleRefreshToken    string
	BusinessTimezone      string
	BusinessStartHour     int
	BusinessEndHour       int
	SlotDurationMinutes   int
	SlotBufferMinutes     int

	// Notifications.
	OwnerPhone string
	RedisAddr  string // empty => in-memory sent-set

	// Storage. Empty DSN selects the in-memory store.
	DatabaseDSN string

	// Outbound scheduler.
	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	// Session limits.
	MaxAudioFrameBytes  int
	MaxJSONMessageBytes int64
	WSWriteTimeout      time.Duration
	WSReadTimeout       time.Duration
	HandshakeTimeout    time.Duration
	ToolTimeout         time.Duration
	MaxSessionDuration  time.Duration

	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                  envOr("VOICEDESK_ADDR", ":8080"),
		PublicHost:            strings.TrimSpace(os.Getenv("VOICEDESK_PUBLIC_HOST")),
		RealtimeURL:           envOr("VOICEDESK_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeAPIKey:        strings.TrimSpace(os.Getenv("VOICEDESK_REALTIME_API_KEY")),
		RealtimeModel:         envOr("VOICEDESK_REALTIME_MODEL", "gpt-4o-realtime-preview"),
		RealtimeVoice:         envOr("VOICEDESK_REALTIME_VOICE", "alloy"),
		RealtimeConnect:       envDurationOr("VOICEDESK_REALTIME_CONNECT_TIMEOUT", 15*time.Second),
		TwilioAccountSID:      strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		TwilioAuthToken:       strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
		TwilioFromNumber:      strings.TrimSpace(os.Getenv("TWILIO_FROM_NUMBER")),
		ForwardingNumber:      strings.TrimSpace(os.Getenv("VOICEDESK_FORWARDING_NUMBER")),
		DialTimeout:           envDurationOr("VOICEDESK_DIAL_TIMEOUT", 15*time.Second),
		Greeting:              envOr("VOICEDESK_GREETING", "Please hold while I connect you."),
		CalendarID:            envOr("VOICEDESK_CALENDAR_ID", "primary"),
		GoogleCredentialsFile: strings.TrimSpace(os.Getenv("VOICEDESK_GOOGLE_CREDENTIALS_FILE")),
		GoogleClientID:        strings.TrimSpace(os.Getenv("VOICEDESK_GOOGLE_CLIENT_ID")),
		GoogleClientSecret:    strings.TrimSpace(os.Getenv("VOICEDESK_GOOGLE_CLIENT_SECRET")),
		GoogleRefreshToken:    strings.TrimSpace(os.Getenv("VOICEDESK_GOOGLE_REFRESH_TOKEN")),
		BusinessTimezone:      envOr("VOICEDESK_BUSINESS_TZ", "America/Los_Angeles"),
		BusinessStartHour:     envIntOr("VOICEDESK_BUSINESS_START_HOUR", 9),
		BusinessEndHour:       envIntOr("VOICEDESK_BUSINESS_END_HOUR", 17),
		SlotDurationMinutes:   envIntOr("VOICEDESK_SLOT_DURATION_MINUTES", 30),
		SlotBufferMinutes:     envIntOr("VOICEDESK_SLOT_BUFFER_MINUTES", 10),
		OwnerPhone:            strings.TrimSpace(os.Getenv("VOICEDESK_OWNER_PHONE")),
		RedisAddr:             strings.TrimSpace(os.Getenv("VOICEDESK_REDIS_ADDR")),
		DatabaseDSN:           strings.TrimSpace(os.Getenv("VOICEDESK_DB_DSN")),
		SchedulerEnabled:      envBoolOr("VOICEDESK_SCHEDULER_ENABLED", false),
		SchedulerInterval:     envDurationOr("VOICEDESK_SCHEDULER_INTERVAL", time.Minute),
		MaxAudioFrameBytes:    envIntOr("VOICEDESK_MAX_AUDIO_FRAME_BYTES", 8192),
		MaxJSONMessageBytes:   envInt64Or("VOICEDESK_MAX_JSON_MESSAGE_BYTES", 64*1024),
		WSWriteTimeout:        envDurationOr("VOICEDESK_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:         envDurationOr("VOICEDESK_WS_READ_TIMEOUT", 0),
		HandshakeTimeout:      envDurationOr("VOICEDESK_HANDSHAKE_TIMEOUT", 10*time.Second),
		ToolTimeout:           envDurationOr("VOICEDESK_TOOL_TIMEOUT", 20*time.Second),
		MaxSessionDuration:    envDurationOr("VOICEDESK_MAX_SESSION_DURATION", time.Hour),
		ShutdownGracePeriod:   envDurationOr("VOICEDESK_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	if cfg.RealtimeAPIKey == "" {
		return Config{}, fmt.Errorf("VOICEDESK_REALTIME_API_KEY must be set")
	}
	if cfg.PublicHost == "" {
		return Config{}, fmt.Errorf("VOICEDESK_PUBLIC_HOST must be set")
	}
	if strings.Contains(cfg.PublicHost, "://") {
		return Config{}, fmt.Errorf("VOICEDESK_PUBLIC_HOST must be a bare host, not a URL")
	}
	if cfg.BusinessStartHour < 0 || cfg.BusinessStartHour > 23 {
		return Config{}, fmt.Errorf("VOICEDESK_BUSINESS_START_HOUR must be in 0..23")
	}
	if cfg.BusinessEndHour < 1 || cfg.BusinessEndHour > 24 {
		return Config{}, fmt.Errorf("VOICEDESK_BUSINESS_END_HOUR must be in 1..24")
	}
	if cfg.BusinessStartHour >= cfg.BusinessEndHour {
		return Config{}, fmt.Errorf("VOICEDESK_BUSINESS_START_HOUR must be before VOICEDESK_BUSINESS_END_HOUR")
	}
	if cfg.SlotDurationMinutes <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_SLOT_DURATION_MINUTES must be > 0")
	}
	if cfg.SlotBufferMinutes < 0 {
		return Config{}, fmt.Errorf("VOICEDESK_SLOT_BUFFER_MINUTES must be >= 0")
	}
	if _, err := timezoneLocation(cfg.BusinessTimezone); err != nil {
		return Config{}, fmt.Errorf("VOICEDESK_BUSINESS_TZ: %w", err)
	}
	if cfg.MaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("VOICEDESK_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.HandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_TOOL_TIMEOUT must be > 0")
	}
	if cfg.MaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_MAX_SESSION_DURATION must be > 0")
	}
	if cfg.SchedulerInterval <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_SCHEDULER_INTERVAL must be > 0")
	}
	if cfg.SchedulerEnabled && (cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "") {
		return Config{}, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER must be set when the scheduler is enabled")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOICEDESK_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func timezoneLocation(name string) (*time.Location, error) {
	return time.LoadLocation(name)
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
