package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigName is the file Load looks for in the config directory.
const ConfigName = "lander.cfg.json"

// LinkConfig selects and configures the vehicle link.
type LinkConfig struct {
	Type       string `json:"type" mapstructure:"type"` // krpc | sim
	KRPCHost   string `json:"krpcHost" mapstructure:"krpcHost"`
	ClientName string `json:"clientName" mapstructure:"clientName"`
}

// GuidanceConfig holds every tuning value of the descent loop.
type GuidanceConfig struct {
	LeadCoefficient       float64       `json:"leadCoefficient" mapstructure:"leadCoefficient"`
	ImpactSpeed           float64       `json:"impactSpeed" mapstructure:"impactSpeed"`
	LowThrottle           float64       `json:"lowThrottle" mapstructure:"lowThrottle"`
	BrakingThrottle       float64       `json:"brakingThrottle" mapstructure:"brakingThrottle"`
	FreefallVerticalSpeed float64       `json:"freefallVerticalSpeed" mapstructure:"freefallVerticalSpeed"`
	GimbalAltitude        float64       `json:"gimbalAltitude" mapstructure:"gimbalAltitude"`
	GimbalLimit           float64       `json:"gimbalLimit" mapstructure:"gimbalLimit"`
	UprightAltitude       float64       `json:"uprightAltitude" mapstructure:"uprightAltitude"`
	TouchdownAltitude     float64       `json:"touchdownAltitude" mapstructure:"touchdownAltitude"`
	IgnitionDelay         time.Duration `json:"ignitionDelay" mapstructure:"ignitionDelay"`
	PollInterval          time.Duration `json:"pollInterval" mapstructure:"pollInterval"`
	TickInterval          time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	SASSettleDelay        time.Duration `json:"sasSettleDelay" mapstructure:"sasSettleDelay"`
	StaleTicks            int           `json:"staleTicks" mapstructure:"staleTicks"`
	IgnitionTimeout       time.Duration `json:"ignitionTimeout" mapstructure:"ignitionTimeout"`
	AscentTimeout         time.Duration `json:"ascentTimeout" mapstructure:"ascentTimeout"`
	FreefallTimeout       time.Duration `json:"freefallTimeout" mapstructure:"freefallTimeout"`
	TargetTimeout         time.Duration `json:"targetTimeout" mapstructure:"targetTimeout"`
}

// OverlayConfig holds the debug vector viewer settings.
type OverlayConfig struct {
	Enabled          bool    `json:"enabled" mapstructure:"enabled"`
	URL              string  `json:"url" mapstructure:"url"`
	Secret           string  `json:"secret" mapstructure:"secret"`
	VelocityScale    float64 `json:"velocityScale" mapstructure:"velocityScale"`
	LineOfSightScale float64 `json:"lineOfSightScale" mapstructure:"lineOfSightScale"`
	SteeringScale    float64 `json:"steeringScale" mapstructure:"steeringScale"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the in-memory SQLite backend settings.
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// StorageConfig selects the flight log backend.
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type"` // memory | sqlite | postgres
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	Memory        MemoryConfig  `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig  `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the lib/pq style connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// InfluxConfig holds the time-series export settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(ConfigName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./landerlogs")

	viper.SetDefault("link.type", "krpc")
	viper.SetDefault("link.krpcHost", "127.0.0.1")
	viper.SetDefault("link.clientName", "lander")

	viper.SetDefault("guidance.leadCoefficient", 1.3)
	viper.SetDefault("guidance.impactSpeed", 0.5)
	viper.SetDefault("guidance.lowThrottle", 0.07)
	viper.SetDefault("guidance.brakingThrottle", 1.0)
	viper.SetDefault("guidance.freefallVerticalSpeed", -1.0)
	viper.SetDefault("guidance.gimbalAltitude", 1425.0)
	viper.SetDefault("guidance.gimbalLimit", 0.2)
	viper.SetDefault("guidance.uprightAltitude", 40.0)
	viper.SetDefault("guidance.touchdownAltitude", 1.0)
	viper.SetDefault("guidance.ignitionDelay", "1s")
	viper.SetDefault("guidance.pollInterval", "100ms")
	viper.SetDefault("guidance.tickInterval", "20ms")
	viper.SetDefault("guidance.sasSettleDelay", "300ms")
	viper.SetDefault("guidance.staleTicks", 50)
	viper.SetDefault("guidance.ignitionTimeout", "10s")
	viper.SetDefault("guidance.ascentTimeout", "5m")
	viper.SetDefault("guidance.freefallTimeout", "10m")
	viper.SetDefault("guidance.targetTimeout", "30s")

	viper.SetDefault("overlay.enabled", false)
	viper.SetDefault("overlay.url", "ws://localhost:5000/api/v1/overlay/ingest")
	viper.SetDefault("overlay.secret", "")
	viper.SetDefault("overlay.velocityScale", 4.0)
	viper.SetDefault("overlay.lineOfSightScale", 4.0)
	viper.SetDefault("overlay.steeringScale", 2.0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.memory.outputDir", "./flights")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.sqlite.dumpPath", "./flights/lander.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "lander")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "lander-metrics")
	viper.SetDefault("influx.bucket", "descent_telemetry")
	viper.SetDefault("influx.backupPath", "./flights/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "descent-guidance")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listenAddress", ":9464")

	viper.SetDefault("status.enabled", true)
	viper.SetDefault("status.file", "status.txt")
	viper.SetDefault("status.interval", "1s")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.uploadOnEnd", false)
}

// GetLinkConfig returns the vehicle link settings.
func GetLinkConfig() LinkConfig {
	return LinkConfig{
		Type:       viper.GetString("link.type"),
		KRPCHost:   viper.GetString("link.krpcHost"),
		ClientName: viper.GetString("link.clientName"),
	}
}

// GetGuidanceConfig returns the descent tuning.
func GetGuidanceConfig() GuidanceConfig {
	return GuidanceConfig{
		LeadCoefficient:       viper.GetFloat64("guidance.leadCoefficient"),
		ImpactSpeed:           viper.GetFloat64("guidance.impactSpeed"),
		LowThrottle:           viper.GetFloat64("guidance.lowThrottle"),
		BrakingThrottle:       viper.GetFloat64("guidance.brakingThrottle"),
		FreefallVerticalSpeed: viper.GetFloat64("guidance.freefallVerticalSpeed"),
		GimbalAltitude:        viper.GetFloat64("guidance.gimbalAltitude"),
		GimbalLimit:           viper.GetFloat64("guidance.gimbalLimit"),
		UprightAltitude:       viper.GetFloat64("guidance.uprightAltitude"),
		TouchdownAltitude:     viper.GetFloat64("guidance.touchdownAltitude"),
		IgnitionDelay:         viper.GetDuration("guidance.ignitionDelay"),
		PollInterval:          viper.GetDuration("guidance.pollInterval"),
		TickInterval:          viper.GetDuration("guidance.tickInterval"),
		SASSettleDelay:        viper.GetDuration("guidance.sasSettleDelay"),
		StaleTicks:            viper.GetInt("guidance.staleTicks"),
		IgnitionTimeout:       viper.GetDuration("guidance.ignitionTimeout"),
		AscentTimeout:         viper.GetDuration("guidance.ascentTimeout"),
		FreefallTimeout:       viper.GetDuration("guidance.freefallTimeout"),
		TargetTimeout:         viper.GetDuration("guidance.targetTimeout"),
	}
}

// GetOverlayConfig returns the debug vector viewer settings.
func GetOverlayConfig() OverlayConfig {
	return OverlayConfig{
		Enabled:          viper.GetBool("overlay.enabled"),
		URL:              viper.GetString("overlay.url"),
		Secret:           viper.GetString("overlay.secret"),
		VelocityScale:    viper.GetFloat64("overlay.velocityScale"),
		LineOfSightScale: viper.GetFloat64("overlay.lineOfSightScale"),
		SteeringScale:    viper.GetFloat64("overlay.steeringScale"),
	}
}

// GetStorageConfig returns the flight log backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
	}
}

// GetDBConfig returns the Postgres settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Protocol:   viper.GetString("influx.protocol"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
