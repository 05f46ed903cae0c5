package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Airtable      AirtableConfig
	Blob          BlobConfig
	Media         MediaConfig
	Site          SiteConfig
	Cron          CronConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Path string
}

type RedisConfig struct {
	URL string
}

type AirtableConfig struct {
	APIURL     string
	APIKey     string
	WebhookPAT string
	BaseID     string
	RateLimit  float64
	Team       TableConfig
	Deals      TableConfig
	// VCCC is read-only; no webhook watches it.
	VCCC       TableConfig
}

// TableConfig describes one Airtable table and the webhook watching it.
type TableConfig struct {
	TableID       string
	ViewID        string
	WebhookID     string
	WebhookSecret string
	StatusFieldID string
}

type BlobConfig struct {
	APIURL   string
	Token    string
	LocalDir string
}

type MediaConfig struct {
	DownloadTimeout          time.Duration
	PortfolioDeleteOnExit    bool
	PortfolioDeleteDestroyed bool
}

type SiteConfig struct {
	RevalidateURL    string
	RevalidateSecret string
	CacheTTL         time.Duration
}

type CronConfig struct {
	Secret string
}

type ObservabilityConfig struct {
	Enabled           bool
	OTLPEndpoint      string
	OTLPTraceHeaders  map[string]string
	OTLPMetricHeaders map[string]string
	ServiceName       string
	ServiceVer        string
	SamplingRatio     float64
	MetricsConsole    bool
}

func Load() (Config, error) {
	return load(true)
}

// LoadForTool loads config for CLI tools that do not require the cron secret.
func LoadForTool() (Config, error) {
	return load(false)
}

func load(requireCronSecret bool) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ugf_env", "")
	v.SetDefault("app_env", "")
	v.SetDefault("go_env", "")
	v.SetDefault("ugf_port", 8080)
	v.SetDefault("ugf_db_path", "data/ugfsync")
	v.SetDefault("redis_url", "")
	v.SetDefault("airtable_api_url", "https://api.airtable.com/v0")
	v.SetDefault("airtable_rate_limit", 5.0)
	v.SetDefault("airtable_team_title_field_id", "flduwcgRbZZiCZFpp")
	v.SetDefault("airtable_deals_status_field_id", "fldmQllRbyaAY6BBZ")
	v.SetDefault("blob_api_url", "https://blob.vercel-storage.com")
	v.SetDefault("blob_local_dir", "")
	v.SetDefault("media_download_timeout", "30s")
	v.SetDefault("portfolio_delete_on_exit", false)
	v.SetDefault("portfolio_delete_destroyed", false)
	v.SetDefault("site_cache_ttl", "24h")
	v.SetDefault("ugf_otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_exporter_otlp_headers", "")
	v.SetDefault("otel_exporter_otlp_traces_headers", "")
	v.SetDefault("otel_exporter_otlp_metrics_headers", "")
	v.SetDefault("otel_service_name", "ugfsync")
	v.SetDefault("ugf_version", "dev")
	v.SetDefault("ugf_otel_sampling_ratio", 1.0)
	v.SetDefault("ugf_otel_metrics_console", false)

	env := resolveEnvironment(v)
	port := v.GetInt("ugf_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid UGF_PORT: %d", port)
	}

	samplingRatio := v.GetFloat64("ugf_otel_sampling_ratio")
	if samplingRatio < 0 {
		samplingRatio = 0
	}
	if samplingRatio > 1 {
		samplingRatio = 1
	}

	rateLimit := v.GetFloat64("airtable_rate_limit")
	if rateLimit <= 0 {
		rateLimit = 5
	}

	downloadTimeout := v.GetDuration("media_download_timeout")
	if downloadTimeout <= 0 {
		downloadTimeout = 30 * time.Second
	}

	cacheTTL := v.GetDuration("site_cache_ttl")
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}

	apiKey := strings.TrimSpace(v.GetString("airtable_api_key"))
	webhookPAT := strings.TrimSpace(v.GetString("airtable_webhook_pat"))
	if webhookPAT == "" {
		webhookPAT = apiKey
	}

	serviceName := strings.TrimSpace(v.GetString("otel_service_name"))
	if serviceName == "" {
		serviceName = "ugfsync"
	}
	serviceVersion := strings.TrimSpace(v.GetString("ugf_version"))
	if serviceVersion == "" {
		serviceVersion = "dev"
	}

	otlpEndpoint := strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint"))
	otlpCommonHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_headers"))
	otlpTraceHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_traces_headers"))
	otlpMetricHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_metrics_headers"))
	metricsConsole := v.GetBool("ugf_otel_metrics_console")
	otelEnabled := v.GetBool("ugf_otel_enabled") || otlpEndpoint != "" || metricsConsole

	cfg := Config{
		Environment: env,
		Server:      ServerConfig{Port: port},
		Database: DatabaseConfig{
			Path: strings.TrimSpace(v.GetString("ugf_db_path")),
		},
		Redis: RedisConfig{
			URL: strings.TrimSpace(v.GetString("redis_url")),
		},
		Airtable: AirtableConfig{
			APIURL:     strings.TrimRight(strings.TrimSpace(v.GetString("airtable_api_url")), "/"),
			APIKey:     apiKey,
			WebhookPAT: webhookPAT,
			BaseID:     strings.TrimSpace(v.GetString("airtable_base_id")),
			RateLimit:  rateLimit,
			Team: TableConfig{
				TableID:       strings.TrimSpace(v.GetString("airtable_team_table_id")),
				ViewID:        strings.TrimSpace(v.GetString("airtable_team_table_view_id")),
				WebhookID:     strings.TrimSpace(v.GetString("airtable_webhook_id")),
				WebhookSecret: strings.TrimSpace(v.GetString("airtable_webhook_secret")),
				StatusFieldID: strings.TrimSpace(v.GetString("airtable_team_title_field_id")),
			},
			Deals: TableConfig{
				TableID:       strings.TrimSpace(v.GetString("airtable_deals_table_id")),
				ViewID:        strings.TrimSpace(v.GetString("airtable_deals_table_view_id")),
				WebhookID:     strings.TrimSpace(v.GetString("airtable_portco_webhook_id")),
				WebhookSecret: strings.TrimSpace(v.GetString("airtable_portco_webhook_secret")),
				StatusFieldID: strings.TrimSpace(v.GetString("airtable_deals_status_field_id")),
			},
			VCCC: TableConfig{
				TableID: strings.TrimSpace(v.GetString("airtable_vccc_table_id")),
				ViewID:  strings.TrimSpace(v.GetString("airtable_vccc_table_view_id")),
			},
		},
		Blob: BlobConfig{
			APIURL:   strings.TrimRight(strings.TrimSpace(v.GetString("blob_api_url")), "/"),
			Token:    strings.TrimSpace(v.GetString("blob_read_write_token")),
			LocalDir: strings.TrimSpace(v.GetString("blob_local_dir")),
		},
		Media: MediaConfig{
			DownloadTimeout:          downloadTimeout,
			PortfolioDeleteOnExit:    v.GetBool("portfolio_delete_on_exit"),
			PortfolioDeleteDestroyed: v.GetBool("portfolio_delete_destroyed"),
		},
		Site: SiteConfig{
			RevalidateURL:    strings.TrimSpace(v.GetString("site_revalidate_url")),
			RevalidateSecret: strings.TrimSpace(v.GetString("site_revalidate_secret")),
			CacheTTL:         cacheTTL,
		},
		Cron: CronConfig{
			Secret: strings.TrimSpace(v.GetString("cron_secret")),
		},
		Observability: ObservabilityConfig{
			Enabled:           otelEnabled,
			OTLPEndpoint:      otlpEndpoint,
			OTLPTraceHeaders:  mergeHeaderMaps(otlpCommonHeaders, otlpTraceHeaders),
			OTLPMetricHeaders: mergeHeaderMaps(otlpCommonHeaders, otlpMetricHeaders),
			ServiceName:       serviceName,
			ServiceVer:        serviceVersion,
			SamplingRatio:     samplingRatio,
			MetricsConsole:    metricsConsole,
		},
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/ugfsync"
	}
	if cfg.Blob.Token == "" && cfg.Blob.LocalDir == "" && cfg.IsLocalDevelopment() {
		cfg.Blob.LocalDir = "data/blobs"
	}
	if requireCronSecret && !cfg.IsLocalDevelopment() && cfg.Cron.Secret == "" {
		return Config{}, fmt.Errorf("CRON_SECRET is required outside local/dev environments")
	}

	return cfg, nil
}

func parseOTLPHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeHeaderMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether logs should be emitted as JSON.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Configured reports whether the table has enough settings to sync media.
func (t TableConfig) Configured() bool {
	return t.TableID != "" && t.WebhookID != "" && t.StatusFieldID != ""
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"ugf_env", "app_env", "go_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
