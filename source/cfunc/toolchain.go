package cfunc

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/tim-hardcastle/cfunc/source/report"
	"github.com/tim-hardcastle/cfunc/source/settings"
)

// An Artifact is what a toolchain leaves behind: the path where the loadable module should be, and
// whatever the compiler printed on the way.
type Artifact struct {
	Path        string
	Diagnostics []byte
}

type Toolchain interface {
	Build(unit []byte) (Artifact, error)
}

// Loader turns an artifact into a routine. It owns the artifact from then on and must delete it.
type Loader interface {
	Load(path string) (Native, error)
}

// The dynamic loader recognizes an already-open module by its path, so no path is ever used twice
// in one process. This counts builds so far.
var builds atomic.Int64

// Compiler runs an external C compiler, feeding it the translation unit on standard input.
type Compiler struct {
	CC      string
	Flags   []string // In addition to the ones that make a loadable module.
	TempDir string
	Logger  *zap.Logger
}

func NewCompiler(cfg settings.Config, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		CC:      cfg.CC,
		Flags:   cfg.CFlags,
		TempDir: cfg.TempDir,
		Logger:  logger,
	}
}

// ArtifactPath returns a fresh path of the form <tempdir>/cfunc.<pid>.<n>.so.
func (c *Compiler) ArtifactPath() string {
	dir := c.TempDir
	if dir == "" {
		dir = settings.DEFAULT_TEMPDIR
	}
	n := builds.Add(1)
	name := fmt.Sprintf("%s.%d.%d.%s", settings.ARTIFACT_PREFIX, unix.Getpid(), n, settings.ARTIFACT_SUFFIX)
	return filepath.Join(dir, name)
}

// Args returns the compiler's arguments for writing to the given path. The language is given
// explicitly since there is no file name to infer it from.
func (c *Compiler) Args(path string) []string {
	args := settings.LinkFlags()
	args = append(args, "-x", "c", "-O2")
	args = append(args, c.Flags...)
	return append(args, "-", "-o", path)
}

// Build runs the compiler to completion. Only a failure to run it at all is an error here: if it
// ran and failed, there is simply no artifact, which the loader will discover.
func (c *Compiler) Build(unit []byte) (Artifact, error) {
	cc := c.CC
	if cc == "" {
		cc = settings.DEFAULT_CC
	}
	path := c.ArtifactPath()
	var diagnostics bytes.Buffer
	cmd := exec.Command(cc, c.Args(path)...)
	cmd.Stdin = bytes.NewReader(unit)
	cmd.Stdout = &diagnostics
	cmd.Stderr = &diagnostics
	if err := cmd.Start(); err != nil {
		return Artifact{Path: path}, report.WrapErr(err, "cfunc/build/launch", cc)
	}
	err := cmd.Wait()
	artifact := Artifact{Path: path, Diagnostics: diagnostics.Bytes()}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return artifact, report.WrapErr(err, "cfunc/build/stdin", cc)
	}
	if err != nil {
		c.Logger.Debug("Compiler exited with an error", zap.String("cc", cc), zap.Error(err),
			zap.ByteString("diagnostics", artifact.Diagnostics))
	}
	return artifact, nil
}
