package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Durable state lives under DataDir.
	DataDir     string
	HistoryPath string
	StatePath   string

	SampleInterval time.Duration
	SampleTimeout  time.Duration

	// Storm prediction and alerting.
	StormAlertsEnabled bool
	SeaLevelCorrection bool
	StormDropRate      float64
	StormWindow        time.Duration
	StormMinSamples    int

	// Sensor streams arrive over MQTT.
	MQTTBroker         string
	MQTTClientID       string
	MQTTBarometerTopic string
	MQTTGPSTopic       string

	// Notifications are published to Kafka when brokers are configured.
	KafkaBrokers    []string
	KafkaAlertTopic string
	KafkaEnabled    bool
}

// Load reads configuration from the environment, applying defaults where unset.
// A .env file in the working directory is loaded first if present; real
// environment variables take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	sampleInterval, err := parsePositiveDuration("SAMPLE_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	sampleTimeout, err := parsePositiveDuration("SAMPLE_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	stormWindow, err := parsePositiveDuration("STORM_WINDOW", "3h")
	if err != nil {
		return nil, err
	}

	alertsEnabled, err := parseBool("STORM_ALERTS_ENABLED", true)
	if err != nil {
		return nil, err
	}
	seaLevel, err := parseBool("SEA_LEVEL_CORRECTION", false)
	if err != nil {
		return nil, err
	}

	dropRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("STORM_DROP_RATE", "2.0"), 64)
	if err != nil || dropRate <= 0 {
		return nil, errors.New("invalid STORM_DROP_RATE")
	}
	minSamples, err := strconv.Atoi(sharedcfg.EnvOrDefault("STORM_MIN_SAMPLES", "3"))
	if err != nil || minSamples < 2 {
		return nil, errors.New("invalid STORM_MIN_SAMPLES: must be an integer >= 2")
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "data")
	brokers := sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS"))

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataDir:     dataDir,
		HistoryPath: filepath.Join(dataDir, "pressure.csv"),
		StatePath:   filepath.Join(dataDir, "state.db"),

		SampleInterval: sampleInterval,
		SampleTimeout:  sampleTimeout,

		StormAlertsEnabled: alertsEnabled,
		SeaLevelCorrection: seaLevel,
		StormDropRate:      dropRate,
		StormWindow:        stormWindow,
		StormMinSamples:    minSamples,

		MQTTBroker:         sharedcfg.EnvOrDefault("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:       sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "storm-watch"),
		MQTTBarometerTopic: sharedcfg.EnvOrDefault("MQTT_BAROMETER_TOPIC", "sensors/barometer"),
		MQTTGPSTopic:       sharedcfg.EnvOrDefault("MQTT_GPS_TOPIC", "sensors/gps"),

		KafkaBrokers:    brokers,
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "storm-alerts"),
		KafkaEnabled:    len(brokers) > 0,
	}

	if cfg.SampleTimeout >= cfg.SampleInterval {
		return nil, errors.New("SAMPLE_TIMEOUT must be shorter than SAMPLE_INTERVAL")
	}
	if cfg.MQTTBarometerTopic == cfg.MQTTGPSTopic {
		return nil, errors.New("MQTT_BAROMETER_TOPIC and MQTT_GPS_TOPIC must differ")
	}
	if cfg.KafkaEnabled && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_BROKERS is set")
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

func parseBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, v)
	}
	return b, nil
}
