//go:build !cgo || !(linux || darwin)

package cfunc

import (
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tim-hardcastle/cfunc/source/report"
)

// DlLoader without cgo can only clean up after the compiler.
type DlLoader struct {
	Logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *DlLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DlLoader{Logger: logger}
}

func (l *DlLoader) Load(path string) (Native, error) {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return nil, multierr.Combine(report.CreateErr("cfunc/load/unsupported"), err)
}
