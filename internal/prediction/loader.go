package prediction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pacer/internal/config"
	"github.com/fyrsmithlabs/pacer/internal/logging"
)

// Fetcher downloads a remote object to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key, dest string) error
}

// LoadModel builds the model handle at startup. It loads cfg.Model.Path if
// present; otherwise, when the artifact store is configured and fetcher is
// non-nil, it downloads the artifact to that path and loads it. Every
// failure is logged and leaves an empty handle, so LoadModel never fails.
func LoadModel(ctx context.Context, cfg *config.Config, fetcher Fetcher, logger *logging.Logger) *ModelHandle {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("model")
	path := cfg.Model.Path

	handle, err := LoadArtifactFile(path)
	switch {
	case err == nil:
		logModel(ctx, logger, handle)
		return handle
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug(ctx, "no local model artifact", zap.String("path", path))
	default:
		logger.Warn(ctx, "local model artifact unusable", zap.String("path", path), zap.Error(err))
	}

	if !cfg.Artifact.Enabled() || fetcher == nil {
		logger.Info(ctx, "no regression model, using heuristic")
		return EmptyHandle()
	}

	bucket, key := cfg.Artifact.Bucket, cfg.Artifact.Key
	if err := fetcher.Fetch(ctx, bucket, key, path); err != nil {
		logger.Warn(ctx, "model artifact download failed, using heuristic", zap.Error(err))
		return EmptyHandle()
	}

	handle, err = LoadArtifactFile(path)
	if err != nil {
		logger.Warn(ctx, "downloaded model artifact unusable, using heuristic", zap.Error(err))
		return EmptyHandle()
	}
	handle.meta.Source = fmt.Sprintf("s3://%s/%s", bucket, key)
	logModel(ctx, logger, handle)
	return handle
}

func logModel(ctx context.Context, logger *logging.Logger, h *ModelHandle) {
	meta := h.Metadata()
	logger.Info(ctx, "regression model loaded",
		zap.String("version", meta.Version),
		zap.String("source", meta.Source),
		zap.Strings("features", meta.FeatureOrder),
	)
}
