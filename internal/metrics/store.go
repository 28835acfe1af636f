// Package metrics provides lookup of structured breed performance values.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dominicdesy/intelia-expert-sub012/internal/entities"
)

// ErrMetricNotFound indicates no value exists for the requested combination.
var ErrMetricNotFound = errors.New("metric not found")

// Value is one structured performance value.
type Value struct {
	Breed   string              `json:"breed"`
	Sex     entities.Sex        `json:"sex"`
	AgeDays int                 `json:"age_days"`
	Metric  entities.MetricType `json:"metric_type"`
	Value   float64             `json:"value"`
	Unit    string              `json:"unit"`
}

// Store looks up performance values by breed, sex, age and metric.
type Store interface {
	GetMetric(ctx context.Context, breed string, sex entities.Sex, ageDays int, metric entities.MetricType) (*Value, error)
}

// DB is the database interface used by SQLStore.
type DB interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLStore reads performance values from a breed_metrics table. It works
// against PostgreSQL and SQLite; driverName selects the placeholder style.
type SQLStore struct {
	db       DB
	postgres bool
}

// NewSQLStore creates a SQL-backed store.
func NewSQLStore(db DB, driverName string) *SQLStore {
	return &SQLStore{db: db, postgres: driverName == "postgres"}
}

const getMetricQuery = `
	SELECT breed, sex, age_days, metric, value, unit
	FROM breed_metrics
	WHERE breed = ? AND sex = ? AND metric = ?
	ORDER BY ABS(age_days - ?)
	LIMIT 1`

// GetMetric returns the value for the combination, taking the row with the
// nearest age when no exact age exists. A nearest row further than 3 days
// away is treated as not found.
func (s *SQLStore) GetMetric(ctx context.Context, breed string, sex entities.Sex, ageDays int, metric entities.MetricType) (*Value, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(getMetricQuery), breed, string(sex), string(metric), ageDays)

	var v Value
	if err := row.Scan(&v.Breed, &v.Sex, &v.AgeDays, &v.Metric, &v.Value, &v.Unit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMetricNotFound
		}
		return nil, fmt.Errorf("query metric: %w", err)
	}

	if diff := v.AgeDays - ageDays; diff > 3 || diff < -3 {
		return nil, ErrMetricNotFound
	}
	return &v, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MemoryStore is an in-memory Store for tests and single-node setups.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]Value
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]Value)}
}

// Put stores a value.
func (m *MemoryStore) Put(v Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[memKey(v.Breed, v.Sex, v.AgeDays, v.Metric)] = v
}

// GetMetric returns the value for the combination, taking the nearest age
// within 3 days when no exact age exists.
func (m *MemoryStore) GetMetric(ctx context.Context, breed string, sex entities.Sex, ageDays int, metric entities.MetricType) (*Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.values[memKey(breed, sex, ageDays, metric)]; ok {
		return &v, nil
	}
	for delta := 1; delta <= 3; delta++ {
		if v, ok := m.values[memKey(breed, sex, ageDays-delta, metric)]; ok {
			return &v, nil
		}
		if v, ok := m.values[memKey(breed, sex, ageDays+delta, metric)]; ok {
			return &v, nil
		}
	}
	return nil, ErrMetricNotFound
}

func memKey(breed string, sex entities.Sex, ageDays int, metric entities.MetricType) string {
	return fmt.Sprintf("%s|%s|%d|%s", breed, sex, ageDays, metric)
}

// SeedReference loads the built-in reference data set.
func (m *MemoryStore) SeedReference() {
	for _, v := range ReferenceValues() {
		m.Put(v)
	}
}

// ReferenceValues returns a small reference data set covering the common
// breeds, for development, seeding and tests.
func ReferenceValues() []Value {
	type ref struct {
		breed  string
		age    int
		weight float64
		fcr    float64
	}
	refs := []ref{
		{"Ross 308", 7, 202, 0.88},
		{"Ross 308", 14, 526, 1.07},
		{"Ross 308", 21, 988, 1.22},
		{"Ross 308", 28, 1570, 1.35},
		{"Ross 308", 35, 2235, 1.47},
		{"Ross 308", 42, 2926, 1.59},
		{"Cobb 500", 7, 197, 0.86},
		{"Cobb 500", 14, 512, 1.06},
		{"Cobb 500", 21, 966, 1.21},
		{"Cobb 500", 28, 1528, 1.34},
		{"Cobb 500", 35, 2177, 1.46},
		{"Cobb 500", 42, 2859, 1.58},
	}
	var out []Value
	for _, r := range refs {
		for _, sex := range []entities.Sex{entities.SexMale, entities.SexFemale, entities.SexAsHatched} {
			// Males run roughly 4% above the mixed value, females 4% below.
			factor := 1.0
			switch sex {
			case entities.SexMale:
				factor = 1.04
			case entities.SexFemale:
				factor = 0.96
			}
			out = append(out,
				Value{Breed: r.breed, Sex: sex, AgeDays: r.age, Metric: entities.MetricBodyWeight, Value: r.weight * factor, Unit: "g"},
				Value{Breed: r.breed, Sex: sex, AgeDays: r.age, Metric: entities.MetricFCR, Value: r.fcr, Unit: "ratio"},
			)
		}
	}
	return out
}
