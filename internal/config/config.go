package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/nearby-search/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Places search backend.
	PlacesAPIKey       string
	PlacesBaseURL      string
	PlacesRadiusMeters int
	PlacesTimeout      time.Duration
	PlacesCacheSize    int // 0 disables the cache

	// Simulated device location source.
	LocationAuthorization   domain.AuthorizationStatus
	LocationPromptResponse  domain.AuthorizationStatus // empty: prompts go unanswered
	LocationServicesEnabled bool
	DeviceCoordinates       *domain.Coordinates // nil: no static positioner
	DeviceFixInterval       time.Duration

	// Kafka fix feed and result relay.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaFixTopic      string
	KafkaResultsTopic  string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration

	SupersededSearchPolicy string // "report" or "discard"
	SearchOnStart          bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	placesTimeout, err := parsePositiveDuration("PLACES_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	fixInterval, err := parsePositiveDuration("DEVICE_FIX_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	radius, err := parseNonNegativeInt("PLACES_RADIUS_METERS", 16000)
	if err != nil {
		return nil, err
	}
	if radius == 0 {
		return nil, errors.New("invalid PLACES_RADIUS_METERS: must be positive")
	}

	cacheSize, err := parseNonNegativeInt("PLACES_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	authorization, err := domain.ParseAuthorizationStatus(sharedcfg.EnvOrDefault("LOCATION_AUTHORIZATION", string(domain.NotDetermined)))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_AUTHORIZATION: %w", err)
	}

	var promptResponse domain.AuthorizationStatus
	if v := sharedcfg.EnvOrDefault("LOCATION_PROMPT_RESPONSE", string(domain.AuthorizedWhenInUse)); v != "none" {
		promptResponse, err = domain.ParseAuthorizationStatus(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOCATION_PROMPT_RESPONSE: %w", err)
		}
	}

	servicesEnabled, err := parseBool("LOCATION_SERVICES_ENABLED", true)
	if err != nil {
		return nil, err
	}

	coords, err := parseDeviceCoordinates()
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	searchOnStart, err := parseBool("SEARCH_ON_START", false)
	if err != nil {
		return nil, err
	}

	policy := strings.ToLower(sharedcfg.EnvOrDefault("SUPERSEDED_SEARCH_POLICY", "report"))
	if policy != "report" && policy != "discard" {
		return nil, fmt.Errorf("invalid SUPERSEDED_SEARCH_POLICY %q: want report or discard", policy)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PlacesAPIKey:       os.Getenv("PLACES_API_KEY"),
		PlacesBaseURL:      sharedcfg.EnvOrDefault("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesRadiusMeters: radius,
		PlacesTimeout:      placesTimeout,
		PlacesCacheSize:    cacheSize,

		LocationAuthorization:   authorization,
		LocationPromptResponse:  promptResponse,
		LocationServicesEnabled: servicesEnabled,
		DeviceCoordinates:       coords,
		DeviceFixInterval:       fixInterval,

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaFixTopic:      sharedcfg.EnvOrDefault("KAFKA_FIX_TOPIC", "device-location-fixes"),
		KafkaResultsTopic:  sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "nearby-search-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "nearby-search"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		SupersededSearchPolicy: policy,
		SearchOnStart:          searchOnStart,
	}

	if cfg.PlacesAPIKey == "" {
		return nil, errors.New("PLACES_API_KEY is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaFixTopic == "" {
			return nil, errors.New("KAFKA_FIX_TOPIC is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaResultsTopic == "" {
			return nil, errors.New("KAFKA_RESULTS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return b, nil
}

// parseDeviceCoordinates reads DEVICE_LATITUDE and DEVICE_LONGITUDE, which
// must be set together.
func parseDeviceCoordinates() (*domain.Coordinates, error) {
	latStr, lngStr := os.Getenv("DEVICE_LATITUDE"), os.Getenv("DEVICE_LONGITUDE")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, errors.New("DEVICE_LATITUDE and DEVICE_LONGITUDE must be set together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_LATITUDE: %q", latStr)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_LONGITUDE: %q", lngStr)
	}

	c := domain.Coordinates{Latitude: lat, Longitude: lng}
	if !c.Valid() {
		return nil, fmt.Errorf("device coordinates out of range: %s", c)
	}
	return &c, nil
}
