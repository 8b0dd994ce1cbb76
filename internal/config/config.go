package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/envlens/envmonitor-service/internal/validation"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	RequestTimeout time.Duration

	CacheBackend string // "in_memory" or "memcached"
	CacheTTL     time.Duration
	// DomainTTLs overrides CacheTTL per domain name.
	DomainTTLs map[string]time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	UpstreamTimeout time.Duration

	OpenMeteoForecastURL   string
	OpenMeteoArchiveURL    string
	OpenMeteoAirQualityURL string
	NASAPowerURL           string
	OpenWeatherURL         string
	OpenWeatherAPIKey      string
	WAQIURL                string
	WAQIToken              string
	ModisURL               string
	ForestWatchURL         string

	RefreshInterval time.Duration
	CoalesceTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	ShutdownTimeout time.Duration

	// Default dashboard location and query parameters.
	Latitude    float64
	Longitude   float64
	RadiusKm    float64
	WindowHours int
	ClimateYear int
	Pollutants  []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend    string            `yaml:"backend"`
		TTL        string            `yaml:"ttl"`
		DomainTTLs map[string]string `yaml:"domain_ttls"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Upstream struct {
		Timeout                string `yaml:"timeout"`
		OpenMeteoForecastURL   string `yaml:"open_meteo_forecast_url"`
		OpenMeteoArchiveURL    string `yaml:"open_meteo_archive_url"`
		OpenMeteoAirQualityURL string `yaml:"open_meteo_air_quality_url"`
		NASAPowerURL           string `yaml:"nasa_power_url"`
		OpenWeatherURL         string `yaml:"open_weather_url"`
		WAQIURL                string `yaml:"waqi_url"`
		ModisURL               string `yaml:"modis_url"`
		ForestWatchURL         string `yaml:"forest_watch_url"`
	} `yaml:"upstream"`

	Refresh struct {
		Interval        string `yaml:"interval"`
		CoalesceTimeout string `yaml:"coalesce_timeout"`
	} `yaml:"refresh"`

	Breaker struct {
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"breaker"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Location struct {
		Latitude    float64  `yaml:"latitude"`
		Longitude   float64  `yaml:"longitude"`
		RadiusKm    float64  `yaml:"radius_km"`
		WindowHours int      `yaml:"window_hours"`
		ClimateYear int      `yaml:"climate_year"`
		Pollutants  []string `yaml:"pollutants"`
	} `yaml:"location"`
}

type secretsFile struct {
	OpenWeatherAPIKey string `yaml:"open_weather_api_key"`
	WAQIToken         string `yaml:"waqi_token"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. Provider keys come from OPENWEATHER_API_KEY /
// WAQI_TOKEN env or the secrets file; both are optional because the keyless
// providers carry every domain on their own. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 10*time.Minute)
	cfg.DomainTTLs = make(map[string]time.Duration, len(fc.Cache.DomainTTLs))
	for domain, raw := range fc.Cache.DomainTTLs {
		cfg.DomainTTLs[domain] = parseDuration(raw, cfg.CacheTTL)
	}

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 500*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 8*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	cfg.UpstreamTimeout = parseDuration(fc.Upstream.Timeout, 10*time.Second)
	cfg.OpenMeteoForecastURL = urlOrDefault(fc.Upstream.OpenMeteoForecastURL, "https://api.open-meteo.com")
	cfg.OpenMeteoArchiveURL = urlOrDefault(fc.Upstream.OpenMeteoArchiveURL, "https://archive-api.open-meteo.com")
	cfg.OpenMeteoAirQualityURL = urlOrDefault(fc.Upstream.OpenMeteoAirQualityURL, "https://air-quality-api.open-meteo.com")
	cfg.NASAPowerURL = urlOrDefault(fc.Upstream.NASAPowerURL, "https://power.larc.nasa.gov")
	cfg.OpenWeatherURL = urlOrDefault(fc.Upstream.OpenWeatherURL, "https://api.openweathermap.org")
	cfg.WAQIURL = urlOrDefault(fc.Upstream.WAQIURL, "https://api.waqi.info")
	cfg.ModisURL = urlOrDefault(fc.Upstream.ModisURL, "https://modis.ornl.gov/rst")
	cfg.ForestWatchURL = urlOrDefault(fc.Upstream.ForestWatchURL, "https://data-api.globalforestwatch.org")

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WAQIToken = os.Getenv("WAQI_TOKEN")
	if cfg.OpenWeatherAPIKey == "" || cfg.WAQIToken == "" {
		sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		if cfg.OpenWeatherAPIKey == "" {
			cfg.OpenWeatherAPIKey = sec.OpenWeatherAPIKey
		}
		if cfg.WAQIToken == "" {
			cfg.WAQIToken = sec.WAQIToken
		}
	}

	cfg.RefreshInterval = parseDuration(fc.Refresh.Interval, 5*time.Minute)
	cfg.CoalesceTimeout = parseDuration(fc.Refresh.CoalesceTimeout, 20*time.Second)

	cfg.BreakerFailureThreshold = fc.Breaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Breaker.SuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerTimeout = parseDuration(fc.Breaker.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 10*time.Minute)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.Latitude = fc.Location.Latitude
	cfg.Longitude = fc.Location.Longitude
	cfg.RadiusKm = fc.Location.RadiusKm
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 25
	}
	cfg.WindowHours = fc.Location.WindowHours
	if cfg.WindowHours <= 0 {
		cfg.WindowHours = 24
	}
	cfg.ClimateYear = fc.Location.ClimateYear
	if cfg.ClimateYear <= 0 {
		cfg.ClimateYear = time.Now().Year() - 1
	}
	cfg.Pollutants = fc.Location.Pollutants
	if len(cfg.Pollutants) == 0 {
		cfg.Pollutants = []string{"pm2_5", "pm10", "o3", "no2"}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets reads the optional secrets file; a missing file is not an error.
func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// TTLFor returns the cache TTL for a domain, falling back to the global TTL.
func (c *Config) TTLFor(domain string) time.Duration {
	if ttl, ok := c.DomainTTLs[domain]; ok {
		return ttl
	}
	return c.CacheTTL
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or result is <= 0. Used for duration fields from YAML.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// urlOrDefault returns the trimmed URL or the default when empty.
func urlOrDefault(s, defaultVal string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	return s
}

// validate performs post-load validation of configuration values. The request
// timeout is auto-widened past the upstream timeout so handler deadlines never
// cut off an in-budget upstream call.
func validate(cfg *Config) error {
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + 5*time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if err := validation.ValidateCoordinates(cfg.Latitude, cfg.Longitude); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	if err := validation.ValidateRadiusKm(cfg.RadiusKm); err != nil {
		return fmt.Errorf("location.radius_km %v: %w", cfg.RadiusKm, err)
	}
	if err := validation.ValidateWindowHours(cfg.WindowHours); err != nil {
		return fmt.Errorf("location.window_hours %d: %w", cfg.WindowHours, err)
	}
	if err := validation.ValidateYear(cfg.ClimateYear); err != nil {
		return fmt.Errorf("location.climate_year %d: %w", cfg.ClimateYear, err)
	}
	return nil
}
