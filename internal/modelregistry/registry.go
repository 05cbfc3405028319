// Package modelregistry stores and serves versioned model artifacts.
// Grounded on original_source/pricing-service/training/model_registry.py's
// version-pointer-file pattern, strengthened with a mandatory checksum
// verification the original treats as best-effort: any checksum mismatch
// here is ModelUnavailable, never a silently-served corrupt model.
package modelregistry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jengu-tech/pricing-service/internal/blobstore"
	"github.com/jengu-tech/pricing-service/internal/domain"
	"github.com/jengu-tech/pricing-service/internal/perr"
)

// BlobCache is the narrow caching interface the registry needs, satisfied
// by internal/cache.RedisCache.
type BlobCache interface {
	GetModelBlob(ctx context.Context, propertyID string, modelType domain.ModelType, version string) ([]byte, bool)
	SetModelBlob(ctx context.Context, propertyID string, modelType domain.ModelType, version string, payload []byte, ttl time.Duration)
}

// MetadataStore persists artifact metadata and the "latest" version
// pointer per property/model-type. Backed by Postgres via gorm in
// production, see internal/modelregistry/postgres_store.go.
type MetadataStore interface {
	LatestVersion(ctx context.Context, propertyID string, modelType domain.ModelType) (string, error)
	GetMetadata(ctx context.Context, propertyID string, modelType domain.ModelType, version string) (domain.ModelArtifact, error)
	PutMetadata(ctx context.Context, artifact domain.ModelArtifact) error
	PromoteVersion(ctx context.Context, propertyID string, modelType domain.ModelType, version string) error
}

// Registry resolves model artifacts by property/type, optionally pinned to
// a version, with a read-through blob cache and checksum verification.
type Registry struct {
	store   MetadataStore
	blobs   blobstore.Store
	cache   BlobCache
	cacheTTL time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

// New constructs a Registry.
func New(store MetadataStore, blobs blobstore.Store, cache BlobCache, cacheTTL time.Duration, logger *zap.Logger) *Registry {
	return &Registry{store: store, blobs: blobs, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Load resolves the artifact for propertyID/modelType, using the latest
// promoted version. Concurrent Load calls for the same key coalesce into a
// single blob fetch via singleflight, the way the original's in-process
// model cache avoids redundant deserialization under load.
func (r *Registry) Load(ctx context.Context, propertyID string, modelType domain.ModelType) (domain.ModelArtifact, error) {
	version, err := r.store.LatestVersion(ctx, propertyID, modelType)
	if err != nil {
		return domain.ModelArtifact{}, perr.New(perr.ModelUnavailable, "modelregistry.Load", "no version pointer for property", err)
	}
	return r.LoadVersion(ctx, propertyID, modelType, version)
}

// LoadVersion resolves a specific pinned version of an artifact.
func (r *Registry) LoadVersion(ctx context.Context, propertyID string, modelType domain.ModelType, version string) (domain.ModelArtifact, error) {
	key := fmt.Sprintf("%s:%s:%s", propertyID, modelType, version)

	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.loadUncoalesced(ctx, propertyID, modelType, version)
	})
	if err != nil {
		return domain.ModelArtifact{}, err
	}
	return result.(domain.ModelArtifact), nil
}

func (r *Registry) loadUncoalesced(ctx context.Context, propertyID string, modelType domain.ModelType, version string) (domain.ModelArtifact, error) {
	meta, err := r.store.GetMetadata(ctx, propertyID, modelType, version)
	if err != nil {
		return domain.ModelArtifact{}, perr.New(perr.ModelUnavailable, "modelregistry.Load", "model metadata not found", err)
	}

	payload, ok := r.cache.GetModelBlob(ctx, propertyID, modelType, version)
	if !ok {
		payload, err = r.blobs.Get(ctx, blobPath(propertyID, modelType, version))
		if err != nil {
			return domain.ModelArtifact{}, perr.New(perr.ModelUnavailable, "modelregistry.Load", "model blob not found in storage", err)
		}
		r.cache.SetModelBlob(ctx, propertyID, modelType, version, payload, r.cacheTTL)
	}

	if checksum(payload) != meta.Checksum {
		r.logger.Error("model checksum mismatch, refusing to serve",
			zap.String("property_id", propertyID), zap.String("model_type", string(modelType)), zap.String("version", version))
		return domain.ModelArtifact{}, perr.New(perr.ModelUnavailable, "modelregistry.Load", "checksum mismatch", nil)
	}

	meta.Payload = payload
	return meta, nil
}

// Publish stores a newly trained artifact's blob and metadata, without
// promoting it to "latest" — promotion is a separate, explicit step so the
// retrain pipeline can validate metrics first.
func (r *Registry) Publish(ctx context.Context, artifact domain.ModelArtifact) error {
	artifact.Checksum = checksum(artifact.Payload)
	if err := r.blobs.Put(ctx, blobPath(artifact.PropertyID, artifact.ModelType, artifact.Version), artifact.Payload); err != nil {
		return perr.New(perr.RetrainError, "modelregistry.Publish", "failed to store model blob", err)
	}
	if err := r.store.PutMetadata(ctx, artifact); err != nil {
		return perr.New(perr.RetrainError, "modelregistry.Publish", "failed to store model metadata", err)
	}
	return nil
}

// LatestVersion returns the currently promoted version for property_id's
// model_type, for the GetModelInfo surface.
func (r *Registry) LatestVersion(ctx context.Context, propertyID string, modelType domain.ModelType) (string, error) {
	return r.store.LatestVersion(ctx, propertyID, modelType)
}

// Promote atomically advances the "latest" pointer for a property/type to
// version. Callers are expected to have already validated the candidate's
// metrics via internal/retrain before calling this.
func (r *Registry) Promote(ctx context.Context, propertyID string, modelType domain.ModelType, version string) error {
	if err := r.store.PromoteVersion(ctx, propertyID, modelType, version); err != nil {
		return perr.New(perr.RetrainError, "modelregistry.Promote", "failed to promote version", err)
	}
	return nil
}

func blobPath(propertyID string, modelType domain.ModelType, version string) string {
	return fmt.Sprintf("models/%s/%s/%s.bin", propertyID, modelType, version)
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
