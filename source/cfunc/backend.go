package cfunc

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tim-hardcastle/cfunc/source/settings"
)

// A Backend turns a translation unit into a loaded routine. The dispatcher knows nothing else about
// how that happens.
type Backend interface {
	Compile(unit []byte) (Native, error)
}

// NativeBackend builds with an external toolchain and loads what it built.
type NativeBackend struct {
	Toolchain Toolchain
	Loader    Loader
	Logger    *zap.Logger
}

func NewNativeBackend(cfg settings.Config, logger *zap.Logger) *NativeBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NativeBackend{
		Toolchain: NewCompiler(cfg, logger),
		Loader:    NewLoader(logger),
		Logger:    logger,
	}
}

func (b *NativeBackend) Compile(unit []byte) (Native, error) {
	artifact, err := b.Toolchain.Build(unit)
	if err != nil {
		// The loader never sees this path, so the cleanup is ours.
		if artifact.Path != "" {
			if rmErr := os.Remove(artifact.Path); rmErr != nil && !os.IsNotExist(rmErr) {
				b.Logger.Warn("Failed to remove artifact", zap.String("path", artifact.Path), zap.Error(rmErr))
			}
		}
		return nil, err
	}
	native, err := b.Loader.Load(artifact.Path)
	if err != nil && len(artifact.Diagnostics) > 0 {
		err = errors.WithMessage(err, "compiler output:\n"+string(artifact.Diagnostics))
	}
	return native, err
}
