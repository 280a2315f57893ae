package vault

import (
	"context"
	"fmt"

	"rentcat/internal/config"
	"rentcat/internal/rentcat"
)

// NewMirrorFromConfig creates a Mirror implementation based on the mirror config type.
func NewMirrorFromConfig(ctx context.Context, cfg config.MirrorConfig) (rentcat.Mirror, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryMirror(cfg.Name), nil
	case "s3":
		return NewS3Mirror(ctx, cfg.Name, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem mirror requires fs_root to be set")
		}
		return NewFileSystemMirror(cfg.Name, cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}
}
