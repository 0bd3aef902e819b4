//
// cfunc version 0.1.0
//
// Compiles small C routines at run time and hands them back as callables. Each distinct routine is
// compiled once per process.
//

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tim-hardcastle/cfunc/source/cfunc"
	"github.com/tim-hardcastle/cfunc/source/host"
	"github.com/tim-hardcastle/cfunc/source/hub"
	"github.com/tim-hardcastle/cfunc/source/journal"
	"github.com/tim-hardcastle/cfunc/source/logger"
	"github.com/tim-hardcastle/cfunc/source/repl"
	"github.com/tim-hardcastle/cfunc/source/settings"
	"github.com/tim-hardcastle/cfunc/source/text"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	v := settings.NewViper()
	cmd := &cobra.Command{
		Use:           "cfunc",
		Short:         "Compile and call C routines at run time",
		Long:          "With no command, cfunc starts an interactive hub. Type 'help' there for the list of commands.",
		Version:       text.VERSION,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatcher(v, errOut, func(d *cfunc.Dispatcher) error {
				fmt.Fprint(out, text.Logo())
				repl.Start(hub.New(out, d), out)
				return nil
			})
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.String(settings.KEY_CC, settings.DEFAULT_CC, "C compiler to run (env CFUNC_CC or CC)")
	flags.StringSlice(settings.KEY_CFLAGS, nil, "extra compiler flags, comma-separated")
	flags.String(settings.KEY_TEMPDIR, settings.DEFAULT_TEMPDIR, "directory for build artifacts (env CFUNC_TEMPDIR or TMPDIR)")
	flags.Bool(settings.KEY_RETRY_FAILED, false, "recompile routines that failed before instead of returning them unusable")
	flags.Int(settings.KEY_MAX_ENTRIES, 0, "most routines to keep cached; 0 for no limit")
	flags.Bool(settings.KEY_INDEXED, true, "index the cache by hash")
	flags.String(settings.KEY_LOG_LEVEL, "warn", "log level: debug, info, warn or error")
	flags.String(settings.KEY_JOURNAL_DRIVER, "", "database to record builds in: "+strings.Join(journal.GetSortedDrivers(), ", "))
	flags.String(settings.KEY_JOURNAL_DSN, "", "data source name for the build journal")
	for _, key := range []string{settings.KEY_CC, settings.KEY_CFLAGS, settings.KEY_TEMPDIR,
		settings.KEY_RETRY_FAILED, settings.KEY_MAX_ENTRIES, settings.KEY_INDEXED, settings.KEY_LOG_LEVEL,
		settings.KEY_JOURNAL_DRIVER, settings.KEY_JOURNAL_DSN} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(newRunCommand(v, out, errOut), newGenCommand(v, out, errOut))
	return cmd
}

// routineFlags describe one routine on the command line.
type routineFlags struct {
	headerFile string
	implFile   string
	locals     []string
	captures   []string
}

func (rf *routineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.headerFile, "header-file", "", "file holding the header text")
	cmd.Flags().StringVar(&rf.implFile, "impl-file", "", "file holding the implementation text")
	cmd.Flags().StringSliceVar(&rf.locals, "locals", nil, "names of the routine's arguments, in order")
	cmd.Flags().StringSliceVar(&rf.captures, "captures", nil, "names of the routine's captures, in order")
	cmd.MarkFlagRequired("impl-file")
}

func (rf *routineFlags) routine() (*host.Routine, error) {
	var header []byte
	if rf.headerFile != "" {
		b, err := os.ReadFile(rf.headerFile)
		if err != nil {
			return nil, err
		}
		header = b
	}
	impl, err := os.ReadFile(rf.implFile)
	if err != nil {
		return nil, err
	}
	return host.NewFrame(rf.locals, rf.captures).Routine(header, impl), nil
}

func newRunCommand(v *viper.Viper, out, errOut io.Writer) *cobra.Command {
	var rf routineFlags
	var args []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile a routine and call it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			values := make([]int64, len(args))
			for i, a := range args {
				n, err := cast.ToInt64E(a)
				if err != nil {
					return err
				}
				values[i] = n
			}
			r, err := rf.routine()
			if err != nil {
				return err
			}
			return withDispatcher(v, errOut, func(d *cfunc.Dispatcher) error {
				fn, err := d.Obtain(r)
				if err != nil {
					return err
				}
				result, err := fn.Call(values...)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, result)
				for i, name := range r.Captures() {
					fmt.Fprintf(out, "%s%s = %d\n", text.BULLET, name, r.Capture(i))
				}
				return nil
			})
		},
	}
	rf.register(cmd)
	cmd.Flags().StringSliceVar(&args, "args", nil, "integer arguments, comma-separated")
	return cmd
}

func newGenCommand(v *viper.Viper, out, errOut io.Writer) *cobra.Command {
	var rf routineFlags
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Print the C a routine compiles to, without compiling it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := rf.routine()
			if err != nil {
				return err
			}
			return withDispatcher(v, errOut, func(d *cfunc.Dispatcher) error {
				unit, err := d.Source(r)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(unit))
				return nil
			})
		},
	}
	rf.register(cmd)
	return cmd
}

type buildJournal interface {
	cfunc.Recorder
	io.Closer
}

var openJournal = func(driver, dsn string) (buildJournal, error) {
	return journal.Open(driver, dsn)
}

// withDispatcher builds a dispatcher from the configuration, with its logger and, if one is
// configured, its build journal, and tears them down after f.
func withDispatcher(v *viper.Viper, errOut io.Writer, f func(d *cfunc.Dispatcher) error) (err error) {
	cfg := settings.Load(v)
	log, err := logger.New(errOut, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()
	opts := []cfunc.Option{cfunc.WithLogger(log)}
	if cfg.JournalDriver != "" {
		j, jErr := openJournal(cfg.JournalDriver, cfg.JournalDSN)
		if jErr != nil {
			return jErr
		}
		defer func() { err = multierr.Append(err, j.Close()) }()
		log.Debug("Recording builds", zap.String("driver", cfg.JournalDriver))
		opts = append(opts, cfunc.WithRecorder(j))
	}
	return f(cfunc.NewFromConfig(cfg, opts...))
}
