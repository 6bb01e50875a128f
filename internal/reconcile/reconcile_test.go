package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_LastWriteWins(t *testing.T) {
	older := Record{"plate_number": "MH12AB1234", "route": "old", "updated_at": int64(100)}
	newer := Record{"plate_number": "MH12AB1234", "route": "new", "updated_at": int64(200)}

	tests := []struct {
		name  string
		input []Record
	}{
		{"older first", []Record{older, newer}},
		{"newer first", []Record{newer, older}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Reconcile(tt.input, VehiclePolicy())
			require.Len(t, res.Records, 1)
			assert.Equal(t, "new", res.Records[0]["route"])
			assert.Equal(t, int64(200), res.Records[0]["updated_at"])
			assert.Equal(t, 1, res.DroppedDuplicates)
		})
	}
}

func TestReconcile_TieKeepsFirstInserted(t *testing.T) {
	first := Record{"plate_number": "KA01XY0001", "route": "first", "updated_at": int64(500)}
	second := Record{"plate_number": "KA01XY0001", "route": "second", "updated_at": int64(500)}

	for i := 0; i < 10; i++ {
		res := Reconcile([]Record{first, second}, VehiclePolicy())
		require.Len(t, res.Records, 1)
		assert.Equal(t, "first", res.Records[0]["route"])
	}
}

func TestReconcile_MissingTimestampsKeepFirst(t *testing.T) {
	first := Record{"plate_number": "KA01XY0001", "route": "first"}
	second := Record{"plate_number": "KA01XY0001", "route": "second"}

	res := Reconcile([]Record{first, second}, VehiclePolicy())
	require.Len(t, res.Records, 1)
	assert.Equal(t, "first", res.Records[0]["route"])
}

func TestReconcile_Idempotent(t *testing.T) {
	input := []Record{
		{"plate_number": "A", "updated_at": int64(10)},
		{"plate_number": "B", "updated_at": int64(20)},
		{"plate_number": "A", "updated_at": int64(30)},
		{"_key": "stored-1", "updated_at": int64(5)},
	}

	once := Reconcile(input, VehiclePolicy())
	twice := Reconcile(once.Records, VehiclePolicy())

	assert.Equal(t, once.Records, twice.Records)
	assert.Equal(t, once.Index, twice.Index)
	assert.Zero(t, twice.Skipped)
	assert.Zero(t, twice.DroppedDuplicates)
}

func TestReconcile_MalformedRecordsSkipped(t *testing.T) {
	input := []Record{
		{"plate_number": "A", "updated_at": int64(10)},
		{"route": "no identity at all"},
		nil,
		{"plate_number": "B"},
	}

	res := Reconcile(input, VehiclePolicy())
	assert.Len(t, res.Records, 2)
	assert.Equal(t, 2, res.Skipped)
	assert.Contains(t, res.Index, "A")
	assert.Contains(t, res.Index, "B")
}

func TestReconcile_StorageKeyFallback(t *testing.T) {
	rec := Record{"_key": "abc123", "route": "r1"}
	res := Reconcile([]Record{rec}, VehiclePolicy())
	require.Len(t, res.Records, 1)
	assert.Contains(t, res.Index, "abc123")
}

func TestReconcile_FirstSeenOrderStable(t *testing.T) {
	input := []Record{
		{"plate_number": "C", "updated_at": int64(1)},
		{"plate_number": "A", "updated_at": int64(1)},
		{"plate_number": "C", "updated_at": int64(9)}, // replaces in place
		{"plate_number": "B", "updated_at": int64(1)},
	}

	res := Reconcile(input, VehiclePolicy())
	require.Len(t, res.Records, 3)
	assert.Equal(t, "C", res.Records[0]["plate_number"])
	assert.Equal(t, "A", res.Records[1]["plate_number"])
	assert.Equal(t, "B", res.Records[2]["plate_number"])
	assert.Equal(t, int64(9), res.Records[0]["updated_at"])
}

func TestReconcile_TripPolicy(t *testing.T) {
	input := []Record{
		{"trip_id": "t-1", "status": "planned", "updated_at": int64(1)},
		{"trip_id": "t-1", "status": "in-progress", "updated_at": int64(2)},
	}
	res := Reconcile(input, TripPolicy())
	require.Len(t, res.Records, 1)
	assert.Equal(t, "in-progress", res.Records[0]["status"])
}

func TestNormalizeTime(t *testing.T) {
	want := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want time.Time
		ok   bool
	}{
		{"epoch millis float", float64(want.UnixMilli()), want, true},
		{"epoch millis int64", want.UnixMilli(), want, true},
		{"rfc3339 string", "2025-06-01T12:30:00Z", want, true},
		{"date only", "2025-06-01", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"native time", want, want, true},
		{"garbage string", "not a time", time.Time{}, false},
		{"nil", nil, time.Time{}, false},
		{"zero number", float64(0), time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
			}
		})
	}
}

func TestReconcile_MixedTimestampFormats(t *testing.T) {
	// Epoch millis vs ISO-8601 must compare on the same axis.
	iso := Record{"plate_number": "X", "route": "iso", "updated_at": "2025-01-01T00:00:00Z"}
	millis := Record{
		"plate_number": "X",
		"route":        "millis",
		"updated_at":   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}

	res := Reconcile([]Record{iso, millis}, VehiclePolicy())
	require.Len(t, res.Records, 1)
	assert.Equal(t, "millis", res.Records[0]["route"])
}

func TestPolicy_CreatedAtFallback(t *testing.T) {
	created := Record{"plate_number": "Y", "route": "created-only", "created_at": int64(300)}
	updated := Record{"plate_number": "Y", "route": "updated", "updated_at": int64(200)}

	// created_at 300 beats updated_at 200 under the fallback chain.
	res := Reconcile([]Record{updated, created}, VehiclePolicy())
	require.Len(t, res.Records, 1)
	assert.Equal(t, "created-only", res.Records[0]["route"])
}
