// All this does is contain in one place the constants fixing the shape of a generated routine and
// its artifact, together with the handful of user-configurable settings, which are read through
// viper so that flags, CFUNC_* environment variables and defaults all end up in the same place.

package settings

import (
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	SYMBOL          = "cfunc" // The one symbol every generated routine exports.
	ABI_LINE        = 300000  // Diagnostics in the ABI block are reported from here.
	HEADER_LINE     = 100000  // ... in the caller's header from here.
	PRELUDE_LINE    = 200000  // ... in the generated accessors from here.
	IMPL_LINE       = 1       // The implementation keeps the caller's own line numbers.
	ARTIFACT_PREFIX = "cfunc"
	ARTIFACT_SUFFIX = "so"
	DEFAULT_TEMPDIR = "/tmp"
	DEFAULT_CC      = "cc"

	SHOW_SOURCE = false // If true the dispatcher logs every translation unit it compiles at debug level.
)

// The viper keys. The same strings are used as flag names by the CLI.
const (
	KEY_CC             = "cc"
	KEY_CFLAGS         = "cflags"
	KEY_TEMPDIR        = "tempdir"
	KEY_RETRY_FAILED   = "retry-failed"
	KEY_MAX_ENTRIES    = "max-entries"
	KEY_INDEXED        = "indexed"
	KEY_LOG_LEVEL      = "log-level"
	KEY_JOURNAL_DRIVER = "journal-driver"
	KEY_JOURNAL_DSN    = "journal-dsn"
)

type Config struct {
	CC            string
	CFlags        []string
	TempDir       string
	RetryFailed   bool
	MaxEntries    int // 0 means the cache is unbounded.
	Indexed       bool
	LogLevel      string
	JournalDriver string // Empty means no journal.
	JournalDSN    string
}

// NewViper returns a viper instance with the defaults set and the environment bound.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CFUNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// The conventional variables are honored when the prefixed ones are absent.
	v.BindEnv(KEY_CC, "CC")
	v.BindEnv(KEY_TEMPDIR, "TMPDIR")
	v.SetDefault(KEY_CC, DEFAULT_CC)
	v.SetDefault(KEY_CFLAGS, []string{})
	v.SetDefault(KEY_TEMPDIR, DEFAULT_TEMPDIR)
	v.SetDefault(KEY_RETRY_FAILED, false)
	v.SetDefault(KEY_MAX_ENTRIES, 0)
	v.SetDefault(KEY_INDEXED, true)
	v.SetDefault(KEY_LOG_LEVEL, "warn")
	v.SetDefault(KEY_JOURNAL_DRIVER, "")
	v.SetDefault(KEY_JOURNAL_DSN, "")
	return v
}

func Load(v *viper.Viper) Config {
	cfg := Config{
		CC:            v.GetString(KEY_CC),
		CFlags:        v.GetStringSlice(KEY_CFLAGS),
		TempDir:       v.GetString(KEY_TEMPDIR),
		RetryFailed:   v.GetBool(KEY_RETRY_FAILED),
		MaxEntries:    v.GetInt(KEY_MAX_ENTRIES),
		Indexed:       v.GetBool(KEY_INDEXED),
		LogLevel:      v.GetString(KEY_LOG_LEVEL),
		JournalDriver: v.GetString(KEY_JOURNAL_DRIVER),
		JournalDSN:    v.GetString(KEY_JOURNAL_DSN),
	}
	if cfg.CC == "" {
		cfg.CC = DEFAULT_CC
	}
	if cfg.TempDir == "" {
		cfg.TempDir = DEFAULT_TEMPDIR
	}
	return cfg
}

// Default is the configuration with nothing but the environment applied.
func Default() Config {
	return Load(NewViper())
}

// LinkFlags are the flags that make the compiler emit a loadable module whose unresolved symbols
// are left for the loader to satisfy.
func LinkFlags() []string {
	if runtime.GOOS == "darwin" {
		return []string{"-shared", "-undefined", "dynamic_lookup"}
	}
	return []string{"-shared", "-fPIC"}
}
