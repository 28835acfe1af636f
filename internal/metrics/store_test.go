package metrics

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
)

func TestSQLStore_GetMetric(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"breed", "sex", "age_days", "metric", "value", "unit"}).
		AddRow("Ross 308", "male", 21, "body_weight", 1028.0, "g")
	mock.ExpectQuery("SELECT breed, sex, age_days, metric, value, unit").
		WithArgs("Ross 308", "male", "body_weight", 21).
		WillReturnRows(rows)

	store := NewSQLStore(db, "sqlite3")
	v, err := store.GetMetric(context.Background(), "Ross 308", entities.SexMale, 21, entities.MetricBodyWeight)
	require.NoError(t, err)
	assert.Equal(t, 1028.0, v.Value)
	assert.Equal(t, "g", v.Unit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetMetricNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT breed, sex, age_days, metric, value, unit").
		WillReturnRows(sqlmock.NewRows([]string{"breed", "sex", "age_days", "metric", "value", "unit"}))

	store := NewSQLStore(db, "sqlite3")
	_, err = store.GetMetric(context.Background(), "Ross 308", entities.SexMale, 21, entities.MetricMortality)
	assert.ErrorIs(t, err, ErrMetricNotFound)
}

func TestSQLStore_NearestAgeTooFar(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Nearest row is 7 days away from the requested age.
	rows := sqlmock.NewRows([]string{"breed", "sex", "age_days", "metric", "value", "unit"}).
		AddRow("Ross 308", "male", 28, "body_weight", 1570.0, "g")
	mock.ExpectQuery("SELECT breed, sex, age_days, metric, value, unit").
		WillReturnRows(rows)

	store := NewSQLStore(db, "sqlite3")
	_, err = store.GetMetric(context.Background(), "Ross 308", entities.SexMale, 35, entities.MetricBodyWeight)
	assert.ErrorIs(t, err, ErrMetricNotFound)
}

func TestSQLStore_PostgresRebind(t *testing.T) {
	store := NewSQLStore(nil, "postgres")
	got := store.rebind("WHERE breed = ? AND sex = ? AND metric = ?")
	assert.Equal(t, "WHERE breed = $1 AND sex = $2 AND metric = $3", got)
}

func TestMemoryStore_ExactAndNearest(t *testing.T) {
	store := NewMemoryStore()
	store.SeedReference()
	ctx := context.Background()

	v, err := store.GetMetric(ctx, "Ross 308", entities.SexAsHatched, 21, entities.MetricBodyWeight)
	require.NoError(t, err)
	assert.Equal(t, 988.0, v.Value)

	// 23 days resolves to the 21-day row.
	v, err = store.GetMetric(ctx, "Ross 308", entities.SexAsHatched, 23, entities.MetricBodyWeight)
	require.NoError(t, err)
	assert.Equal(t, 21, v.AgeDays)

	// 50 days is more than 3 days from any seeded row.
	_, err = store.GetMetric(ctx, "Ross 308", entities.SexAsHatched, 50, entities.MetricBodyWeight)
	assert.ErrorIs(t, err, ErrMetricNotFound)

	_, err = store.GetMetric(ctx, "Hubbard Flex", entities.SexAsHatched, 21, entities.MetricBodyWeight)
	assert.ErrorIs(t, err, ErrMetricNotFound)
}

func TestMemoryStore_SexSpecificValues(t *testing.T) {
	store := NewMemoryStore()
	store.SeedReference()
	ctx := context.Background()

	male, err := store.GetMetric(ctx, "Cobb 500", entities.SexMale, 35, entities.MetricBodyWeight)
	require.NoError(t, err)
	female, err := store.GetMetric(ctx, "Cobb 500", entities.SexFemale, 35, entities.MetricBodyWeight)
	require.NoError(t, err)

	assert.Greater(t, male.Value, female.Value)
}
