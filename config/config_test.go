package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "report-requests", cfg.Kafka.TopicReportRequests)

	engine := cfg.Analytics.Engine()
	assert.Equal(t, 10, engine.BasketMinSupport)
	assert.Equal(t, 20, engine.BasketTopN)
	assert.Equal(t, 5, engine.PathMinOccurrences)
	assert.Equal(t, 10*time.Minute, engine.AttributionWindow)
	assert.Equal(t, 2.0, engine.AnomalyZThreshold)
	assert.Equal(t, []string{"cancelled", "refunded"}, engine.ExcludedStatuses)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "mariadb://shop:pw@db:3306/commerce")
	t.Setenv("BASKET_MIN_SUPPORT", "3")
	t.Setenv("ATTRIBUTION_WINDOW_MINUTES", "30")
	t.Setenv("EXCLUDED_ORDER_STATUSES", "")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "shop:pw@tcp(db:3306)/commerce?parseTime=true&loc=UTC&interpolateParams=true", cfg.Database.URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	engine := cfg.Analytics.Engine()
	assert.Equal(t, 3, engine.BasketMinSupport)
	assert.Equal(t, 30*time.Minute, engine.AttributionWindow)
	assert.NotNil(t, engine.ExcludedStatuses)
	assert.Empty(t, engine.ExcludedStatuses)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	_, err := Load()
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	out, err := MySQLDSN("mysql://u:p@db.example:3307/shop")
	require.NoError(t, err)
	assert.Contains(t, out, "u:p@tcp(db.example:3307)/shop")
	assert.Contains(t, out, "parseTime=true")

	native := "user:pass@tcp(127.0.0.1:3306)/db?parseTime=true&loc=UTC"
	out, err = MySQLDSN(native)
	require.NoError(t, err)
	assert.Equal(t, native, out)

	_, err = MySQLDSN("mariadb://user@/")
	assert.Error(t, err)
}
