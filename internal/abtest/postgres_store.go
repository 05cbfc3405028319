package abtest

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

type experimentConfigRow struct {
	ExperimentID        string    `gorm:"primaryKey;column:experiment_id"`
	MLTrafficPercentage int       `gorm:"column:ml_traffic_percentage"`
	RandomizationUnit   string    `gorm:"column:randomization_unit"`
	StartDate           time.Time `gorm:"column:start_date"`
	EndDate             time.Time `gorm:"column:end_date"`
	IsActive            bool      `gorm:"column:is_active"`
}

func (experimentConfigRow) TableName() string { return "experiment_configs" }

type experimentResultRow struct {
	ExperimentID  string    `gorm:"column:experiment_id"`
	Variant       string    `gorm:"column:variant"`
	Price         float64   `gorm:"column:price"`
	Booked        bool      `gorm:"column:booked"`
	Revenue       float64   `gorm:"column:revenue"`
	LeadDays      int       `gorm:"column:lead_days"`
	LengthOfStay  int       `gorm:"column:length_of_stay"`
	OccupancyRate float64   `gorm:"column:occupancy_rate"`
	RecordedAt    time.Time `gorm:"column:recorded_at"`
}

func (experimentResultRow) TableName() string { return "experiment_results" }

// PostgresConfigStore implements ConfigStore, resolving the single active
// experiment row that applies to every property (property-scoped
// experiments are a straightforward extension not exercised by the
// current deployment).
type PostgresConfigStore struct {
	db *gorm.DB
}

// NewPostgresConfigStore constructs a PostgresConfigStore.
func NewPostgresConfigStore(db *gorm.DB) *PostgresConfigStore {
	return &PostgresConfigStore{db: db}
}

// ActiveExperiment implements ConfigStore.
func (s *PostgresConfigStore) ActiveExperiment(ctx context.Context, _ string) (domain.ExperimentConfig, time.Time, time.Time, bool) {
	var row experimentConfigRow
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("start_date DESC").First(&row).Error
	if err != nil {
		return domain.ExperimentConfig{}, time.Time{}, time.Time{}, false
	}
	return domain.ExperimentConfig{
		ExperimentID:        row.ExperimentID,
		MLTrafficPercentage: row.MLTrafficPercentage,
		Active:              row.IsActive,
	}, row.StartDate, row.EndDate, true
}

// PostgresResultLogger implements ResultLogger.
type PostgresResultLogger struct {
	db *gorm.DB
}

// NewPostgresResultLogger constructs a PostgresResultLogger.
func NewPostgresResultLogger(db *gorm.DB) *PostgresResultLogger {
	return &PostgresResultLogger{db: db}
}

// LogResult implements ResultLogger.
func (l *PostgresResultLogger) LogResult(ctx context.Context, experimentID, variant string, price float64, booked bool, revenue float64, leadDays, los int, occupancy float64) {
	row := experimentResultRow{
		ExperimentID:  experimentID,
		Variant:       variant,
		Price:         price,
		Booked:        booked,
		Revenue:       revenue,
		LeadDays:      leadDays,
		LengthOfStay:  los,
		OccupancyRate: occupancy,
		RecordedAt:    time.Now(),
	}
	l.db.WithContext(ctx).Create(&row)
}

// VariantStatsFor loads VariantStats for experimentID/variant from stored
// results, for Compare.
func (l *PostgresResultLogger) VariantStatsFor(ctx context.Context, experimentID, variant string) (VariantStats, error) {
	var rows []experimentResultRow
	if err := l.db.WithContext(ctx).Where("experiment_id = ? AND variant = ?", experimentID, variant).Find(&rows).Error; err != nil {
		return VariantStats{}, err
	}

	stats := VariantStats{Variant: variant, N: len(rows)}
	for _, r := range rows {
		if r.Booked {
			stats.Conversions++
		}
		stats.Revenues = append(stats.Revenues, r.Revenue)
	}
	return stats, nil
}
