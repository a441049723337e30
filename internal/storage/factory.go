package storage

import (
	"context"
	"strings"

	"github.com/timmy/jobalerts/internal/config"
)

// NewStorage builds the snapshot bucket client from the storage config
// section. An empty type is inferred from the endpoint host.
func NewStorage(ctx context.Context, cfg *config.StorageConfig) (*S3Storage, error) {
	storeType := StorageType(strings.ToLower(cfg.Type))
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	return NewS3Storage(ctx, &S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	})
}

func detectStorageType(endpoint string) StorageType {
	host := strings.ToLower(normalizeEndpoint(endpoint))
	switch {
	case strings.HasSuffix(host, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.HasSuffix(host, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
