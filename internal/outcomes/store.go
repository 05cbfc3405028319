// Package outcomes implements the append-only, deduplicated per-property
// outcome ledger (C7). Grounded on the teacher's gorm-backed persistence
// style and single-writer-per-key discipline (RulesEngine's RuleCache
// uses a similar per-key exclusivity, here realized as a per-property
// mutex around writes rather than a cache TTL).
package outcomes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/perr"
)

// outcomeRow is the gorm model backing the outcomes table.
type outcomeRow struct {
	PropertyID  string    `gorm:"primaryKey;column:property_id"`
	Timestamp   time.Time `gorm:"primaryKey;column:timestamp"`
	QuotedPrice float64   `gorm:"primaryKey;column:quoted_price"`
	Accepted    bool      `gorm:"column:accepted"`
	FinalPrice  *float64  `gorm:"column:final_price"`
	CompP50     *float64  `gorm:"column:comp_p50"`
	ActionID    string    `gorm:"column:action_id"`
	ContextJSON string    `gorm:"column:context_json"`
}

func (outcomeRow) TableName() string { return "outcomes" }

// AppendResult reports how many records from a batch were stored, flagged
// invalid, or recognized as duplicates of existing rows.
type AppendResult struct {
	Stored     int
	Invalid    int
	Duplicates int
}

// Stats summarizes a property's outcome history.
type Stats struct {
	Total          int64
	AcceptanceRate float64
	AvgQuoted      float64
	Last7Days      int64
	EarliestAt     *time.Time
	LatestAt       *time.Time
}

// Store implements C7 on top of gorm/Postgres.
type Store struct {
	db      *gorm.DB
	writeMu sync.Map // propertyID -> *sync.Mutex, serializes writes per property
}

// New constructs a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) lockFor(propertyID string) *sync.Mutex {
	v, _ := s.writeMu.LoadOrStore(propertyID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Append validates and stores a batch of outcomes for propertyID.
// Validation failures are skipped (counted Invalid) without aborting the
// batch; duplicate (property_id, timestamp, quoted_price) keys overwrite
// the prior row (latest write wins) per spec.md's dedup contract.
func (s *Store) Append(ctx context.Context, propertyID string, batch []domain.Outcome) (AppendResult, error) {
	lock := s.lockFor(propertyID)
	lock.Lock()
	defer lock.Unlock()

	var result AppendResult
	var rows []outcomeRow

	for _, o := range batch {
		if err := validateOutcome(o); err != nil {
			result.Invalid++
			continue
		}
		rows = append(rows, toRow(o))
	}

	if len(rows) == 0 {
		return result, nil
	}

	for _, row := range rows {
		var existing outcomeRow
		err := s.db.WithContext(ctx).
			Where("property_id = ? AND timestamp = ? AND quoted_price = ?", row.PropertyID, row.Timestamp, row.QuotedPrice).
			First(&existing).Error
		if err == nil {
			result.Duplicates++
		} else {
			result.Stored++
		}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "property_id"}, {Name: "timestamp"}, {Name: "quoted_price"}},
		DoUpdates: clause.AssignmentColumns([]string{"accepted", "final_price", "comp_p50", "action_id", "context_json"}),
	}).Create(&rows).Error
	if err != nil {
		return result, perr.New(perr.OutcomesStoreError, "outcomes.Append", "failed to persist outcomes batch", err)
	}

	return result, nil
}

// Query returns outcomes for propertyID within [start, end], newest first,
// bounded by limit (0 means unbounded).
func (s *Store) Query(ctx context.Context, propertyID string, start, end *time.Time, limit int) ([]domain.Outcome, error) {
	q := s.db.WithContext(ctx).Where("property_id = ?", propertyID)
	if start != nil {
		q = q.Where("timestamp >= ?", *start)
	}
	if end != nil {
		q = q.Where("timestamp <= ?", *end)
	}
	q = q.Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []outcomeRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, perr.New(perr.OutcomesStoreError, "outcomes.Query", "query failed", err)
	}

	out := make([]domain.Outcome, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

// Stats computes summary statistics for propertyID.
func (s *Store) Stats(ctx context.Context, propertyID string) (Stats, error) {
	var stats Stats
	var total int64
	if err := s.db.WithContext(ctx).Model(&outcomeRow{}).Where("property_id = ?", propertyID).Count(&total).Error; err != nil {
		return stats, perr.New(perr.OutcomesStoreError, "outcomes.Stats", "count failed", err)
	}
	stats.Total = total
	if total == 0 {
		return stats, nil
	}

	var accepted int64
	s.db.WithContext(ctx).Model(&outcomeRow{}).Where("property_id = ? AND accepted = ?", propertyID, true).Count(&accepted)
	stats.AcceptanceRate = float64(accepted) / float64(total)

	var avg float64
	s.db.WithContext(ctx).Model(&outcomeRow{}).Where("property_id = ?", propertyID).Select("AVG(quoted_price)").Scan(&avg)
	stats.AvgQuoted = avg

	weekAgo := time.Now().AddDate(0, 0, -7)
	var recent int64
	s.db.WithContext(ctx).Model(&outcomeRow{}).Where("property_id = ? AND timestamp >= ?", propertyID, weekAgo).Count(&recent)
	stats.Last7Days = recent

	return stats, nil
}

// MinTotalAndRecent returns the total outcome count and the count in the
// last 7 days, the two quantities the retrain gate checks.
func (s *Store) MinTotalAndRecent(ctx context.Context, propertyID string) (total int64, recent int64, err error) {
	stats, err := s.Stats(ctx, propertyID)
	if err != nil {
		return 0, 0, err
	}
	return stats.Total, stats.Last7Days, nil
}

// ListProperties returns every distinct property_id with at least one
// stored outcome, for the all-properties retrain sweep.
func (s *Store) ListProperties(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&outcomeRow{}).Distinct("property_id").Pluck("property_id", &ids).Error; err != nil {
		return nil, perr.New(perr.OutcomesStoreError, "outcomes.ListProperties", "list failed", err)
	}
	return ids, nil
}

// Export writes a property's outcomes within [start, end] to a CSV file
// under exportDir and returns its path, for feeding the retrain pipeline's
// dataset builder.
func (s *Store) Export(ctx context.Context, propertyID string, start, end *time.Time, exportDir string) (string, error) {
	records, err := s.Query(ctx, propertyID, start, end, 0)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("%s/%s_%d.csv", exportDir, propertyID, time.Now().Unix())
	if err := writeCSV(path, records); err != nil {
		return "", perr.New(perr.OutcomesStoreError, "outcomes.Export", "failed to write export", err)
	}
	return path, nil
}

// Delete removes outcomes for propertyID older than before (if given),
// an explicit retention sweep; outcomes are otherwise immutable.
func (s *Store) Delete(ctx context.Context, propertyID string, before *time.Time) error {
	q := s.db.WithContext(ctx).Where("property_id = ?", propertyID)
	if before != nil {
		q = q.Where("timestamp < ?", *before)
	}
	if err := q.Delete(&outcomeRow{}).Error; err != nil {
		return perr.New(perr.OutcomesStoreError, "outcomes.Delete", "delete failed", err)
	}
	return nil
}

func validateOutcome(o domain.Outcome) error {
	if o.PropertyID == "" {
		return fmt.Errorf("property_id is required")
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if !o.QuotedPrice.IsPositive() {
		return fmt.Errorf("quoted_price must be positive")
	}
	return nil
}

func toRow(o domain.Outcome) outcomeRow {
	row := outcomeRow{
		PropertyID:  o.PropertyID,
		Timestamp:   o.Timestamp,
		Accepted:    o.Accepted,
		ActionID:    o.ActionID,
		ContextJSON: o.ContextJSON,
	}
	row.QuotedPrice, _ = o.QuotedPrice.Float64()
	if o.FinalPrice != nil {
		v, _ := o.FinalPrice.Float64()
		row.FinalPrice = &v
	}
	if o.CompP50 != nil {
		v, _ := o.CompP50.Float64()
		row.CompP50 = &v
	}
	return row
}

func fromRow(r outcomeRow) domain.Outcome {
	o := domain.Outcome{
		PropertyID:  r.PropertyID,
		Timestamp:   r.Timestamp,
		QuotedPrice: decimal.NewFromFloat(r.QuotedPrice),
		Accepted:    r.Accepted,
		ActionID:    r.ActionID,
		ContextJSON: r.ContextJSON,
	}
	if r.FinalPrice != nil {
		v := decimal.NewFromFloat(*r.FinalPrice)
		o.FinalPrice = &v
	}
	if r.CompP50 != nil {
		v := decimal.NewFromFloat(*r.CompP50)
		o.CompP50 = &v
	}
	return o
}
