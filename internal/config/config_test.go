package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"link": { "type": "sim" },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "sim", viper.GetString("link.type"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./landerlogs", viper.GetString("logsDir"))
	assert.Equal(t, "krpc", viper.GetString("link.type"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "lander", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, ":9464", viper.GetString("metrics.listenAddress"))
	assert.Equal(t, "status.txt", viper.GetString("status.file"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	// defaults still apply
	assert.Equal(t, 1.3, GetGuidanceConfig().LeadCoefficient)
}

func TestGetGuidanceConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	g := GetGuidanceConfig()
	assert.Equal(t, 1.3, g.LeadCoefficient)
	assert.Equal(t, 0.5, g.ImpactSpeed)
	assert.Equal(t, 0.07, g.LowThrottle)
	assert.Equal(t, 1.0, g.BrakingThrottle)
	assert.Equal(t, -1.0, g.FreefallVerticalSpeed)
	assert.Equal(t, 1425.0, g.GimbalAltitude)
	assert.Equal(t, 0.2, g.GimbalLimit)
	assert.Equal(t, 40.0, g.UprightAltitude)
	assert.Equal(t, 1.0, g.TouchdownAltitude)
	assert.Equal(t, time.Second, g.IgnitionDelay)
	assert.Equal(t, 100*time.Millisecond, g.PollInterval)
	assert.Equal(t, 20*time.Millisecond, g.TickInterval)
	assert.Equal(t, 300*time.Millisecond, g.SASSettleDelay)
	assert.Equal(t, 50, g.StaleTicks)
	assert.Equal(t, 5*time.Minute, g.AscentTimeout)
	assert.Equal(t, 30*time.Second, g.TargetTimeout)
}

func TestGetGuidanceConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"guidance": { "leadCoefficient": 1.5, "gimbalAltitude": 1000, "tickInterval": "50ms" }
	}`)))

	g := GetGuidanceConfig()
	assert.Equal(t, 1.5, g.LeadCoefficient)
	assert.Equal(t, 1000.0, g.GimbalAltitude)
	assert.Equal(t, 50*time.Millisecond, g.TickInterval)
	assert.Equal(t, 40.0, g.UprightAltitude)
}

func TestGetOverlayConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	o := GetOverlayConfig()
	assert.False(t, o.Enabled)
	assert.Equal(t, 4.0, o.VelocityScale)
	assert.Equal(t, 4.0, o.LineOfSightScale)
	assert.Equal(t, 2.0, o.SteeringScale)
}

func TestGetLinkConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{ "link": { "krpcHost": "10.1.1.1" } }`)))

	l := GetLinkConfig()
	assert.Equal(t, "krpc", l.Type)
	assert.Equal(t, "10.1.1.1", l.KRPCHost)
	assert.Equal(t, "lander", l.ClientName)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, 2*time.Second, cfg.FlushInterval)
	assert.Equal(t, "./flights", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, time.Minute, cfg.SQLite.DumpInterval)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "descent-guidance", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	viper.Set("testDuration", "3s")

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
	assert.Equal(t, 3*time.Second, GetDuration("testDuration"))
}

func TestGetDBConfig_DSN(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{ "db": { "host": "db.local", "password": "pw" } }`)))

	cfg := GetDBConfig()
	assert.Equal(t, "db.local", cfg.Host)
	assert.Equal(t, "lander", cfg.Database)
	assert.Equal(t, "host=db.local port=5432 user=postgres password=pw dbname=lander sslmode=disable", cfg.DSN())
}

func TestGetInfluxConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetInfluxConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "descent_telemetry", cfg.Bucket)
	assert.Equal(t, "lander-metrics", cfg.Org)
	assert.Equal(t, "http://localhost:8086", cfg.URL())
}
