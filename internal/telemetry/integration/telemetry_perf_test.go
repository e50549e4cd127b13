package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	telemetry "smartgarden-cloud/internal/telemetry/domain"
	telemetrypostgres "smartgarden-cloud/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestReadingPerf_30dInsert_7dHistory(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "sensor_readings") {
		t.Skip("sensor_readings missing; run migrations")
	}

	ctx := context.Background()
	gardenID := "garden-perf"
	deviceID := "device-perf"

	start := time.Now().UTC().AddDate(0, 0, -30).Truncate(24 * time.Hour)
	end := time.Now().UTC().Truncate(24 * time.Hour)

	_, _ = db.ExecContext(ctx, `DELETE FROM sensor_readings WHERE garden_id = $1`, gardenID)

	repo := telemetrypostgres.NewReadingRepository(db)

	insertStart := time.Now()
	for day := 0; day < 30; day++ {
		dayStart := start.AddDate(0, 0, day)
		for hour := 0; hour < 24; hour++ {
			ts := dayStart.Add(time.Duration(hour) * time.Hour)
			for _, sample := range []struct {
				sensor telemetry.SensorType
				value  float64
			}{
				{telemetry.SensorSoilMoisture, float64(hour) + 20},
				{telemetry.SensorTemperature, float64(hour)/2 + 10},
			} {
				reading := &telemetry.Reading{
					DeviceID:   deviceID,
					GardenID:   gardenID,
					SensorType: sample.sensor,
					Value:      sample.value,
					Timestamp:  ts,
				}
				if err := repo.Insert(ctx, reading); err != nil {
					t.Fatalf("insert reading: %v", err)
				}
			}
		}
	}
	insertElapsed := time.Since(insertStart)

	queryStart := time.Now()
	page, err := repo.History(ctx, telemetry.HistoryQuery{
		GardenID: gardenID,
		From:     end.AddDate(0, 0, -7),
		To:       end.Add(-time.Nanosecond),
		Page:     0,
		Size:     500,
	})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	historyElapsed := time.Since(queryStart)

	if page.Total != 7*24*2 {
		t.Fatalf("expected %d readings in 7d window, got %d", 7*24*2, page.Total)
	}
	if len(page.Readings) != 7*24*2 {
		t.Fatalf("expected full page, got %d", len(page.Readings))
	}
	for i := 1; i < len(page.Readings); i++ {
		if page.Readings[i].Timestamp.After(page.Readings[i-1].Timestamp) {
			t.Fatalf("history not newest first at %d", i)
		}
	}

	t.Logf("perf insert 30d rows=%d elapsed=%s", 30*24*2, insertElapsed)
	t.Logf("perf history 7d rows=%d elapsed=%s", len(page.Readings), historyElapsed)
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
