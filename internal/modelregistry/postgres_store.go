package modelregistry

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

// modelMetadataRow is the gorm model backing the model_metadata table.
type modelMetadataRow struct {
	PropertyID   string `gorm:"primaryKey;column:property_id"`
	ModelType    string `gorm:"primaryKey;column:model_type"`
	Version      string `gorm:"primaryKey;column:version"`
	FeatureNames string `gorm:"column:feature_names"` // comma-joined
	AUC          float64 `gorm:"column:auc"`
	RMSE         float64 `gorm:"column:rmse"`
	Checksum     string `gorm:"column:checksum"`
	TrainedAt    time.Time `gorm:"column:trained_at"`
}

func (modelMetadataRow) TableName() string { return "model_metadata" }

// versionPointerRow is the gorm model backing the model_version_pointer
// table — one row per property/model-type naming the currently promoted
// version.
type versionPointerRow struct {
	PropertyID string `gorm:"primaryKey;column:property_id"`
	ModelType  string `gorm:"primaryKey;column:model_type"`
	Version    string `gorm:"column:version"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (versionPointerRow) TableName() string { return "model_version_pointer" }

// PostgresStore implements MetadataStore on top of gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// LatestVersion returns the currently promoted version pointer.
func (s *PostgresStore) LatestVersion(ctx context.Context, propertyID string, modelType domain.ModelType) (string, error) {
	var row versionPointerRow
	err := s.db.WithContext(ctx).
		Where("property_id = ? AND model_type = ?", propertyID, string(modelType)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.New("no promoted version for property")
	}
	if err != nil {
		return "", err
	}
	return row.Version, nil
}

// GetMetadata fetches artifact metadata for a specific version.
func (s *PostgresStore) GetMetadata(ctx context.Context, propertyID string, modelType domain.ModelType, version string) (domain.ModelArtifact, error) {
	var row modelMetadataRow
	err := s.db.WithContext(ctx).
		Where("property_id = ? AND model_type = ? AND version = ?", propertyID, string(modelType), version).
		First(&row).Error
	if err != nil {
		return domain.ModelArtifact{}, err
	}
	return domain.ModelArtifact{
		PropertyID:   row.PropertyID,
		ModelType:    domain.ModelType(row.ModelType),
		Version:      row.Version,
		FeatureNames: splitCSV(row.FeatureNames),
		Metrics:      domain.ModelMetrics{AUC: row.AUC, RMSE: row.RMSE},
		Checksum:     row.Checksum,
		TrainedAt:    row.TrainedAt,
	}, nil
}

// PutMetadata inserts or updates an artifact's metadata row.
func (s *PostgresStore) PutMetadata(ctx context.Context, artifact domain.ModelArtifact) error {
	row := modelMetadataRow{
		PropertyID:   artifact.PropertyID,
		ModelType:    string(artifact.ModelType),
		Version:      artifact.Version,
		FeatureNames: joinCSV(artifact.FeatureNames),
		AUC:          artifact.Metrics.AUC,
		RMSE:         artifact.Metrics.RMSE,
		Checksum:     artifact.Checksum,
		TrainedAt:    artifact.TrainedAt,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// PromoteVersion atomically advances the version pointer inside a
// transaction, upserting if no pointer row exists yet.
func (s *PostgresStore) PromoteVersion(ctx context.Context, propertyID string, modelType domain.ModelType, version string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := versionPointerRow{
			PropertyID: propertyID,
			ModelType:  string(modelType),
			Version:    version,
			UpdatedAt:  time.Now(),
		}
		return tx.Save(&row).Error
	})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinCSV(parts []string) string {
	return strings.Join(parts, ",")
}
