package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/brettbedarf/kfs/config"
	"github.com/brettbedarf/kfs/internal/util"
	"github.com/brettbedarf/kfs/requests"
	"github.com/brettbedarf/kfs/session"
	"github.com/brettbedarf/kfs/shell"
)

// Build-time variable injected via ldflags
var version = "dev"

// defaultSeedRoot names the root created for --seed when --root is not given
const defaultSeedRoot = "root"

type options struct {
	configPath string
	seedPath   string
	root       string
	exec       []string
	verbose    int
}

func main() {
	shell.Version = version
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "kfs",
		Short: "In-memory hierarchical namespace with a command shell",
		Long: `kfs keeps one or more directory trees in memory and lets you build and
inspect them from a shell. Commands are read interactively when stdin is a
terminal and as a script otherwise.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flags.StringVarP(&opts.seedPath, "seed", "s", "", "Path to a YAML or JSON file of nodes to create at startup")
	flags.StringVarP(&opts.root, "root", "r", "", "Create and select a root with this name")
	flags.StringArrayVarP(&opts.exec, "exec", "e", nil, "Run a command and exit instead of reading stdin (repeatable)")
	flags.IntVarP(&opts.verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	cfg := config.NewDefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(opts.configPath); err != nil {
			return fmt.Errorf("load config %s: %w", opts.configPath, err)
		}
	}
	if cmd.Flags().Changed("verbose") {
		cfg.LogLvl = config.VerbosityToLogLevel(opts.verbose)
	}

	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")
	logger.Debug().Str("config", opts.configPath).Str("seed", opts.seedPath).Str("root", opts.root).Msg("kfs initializing")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(cfg, nil)
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close session")
		}
	}()

	rootName := opts.root
	if rootName == "" && opts.seedPath != "" {
		rootName = defaultSeedRoot
	}
	if rootName != "" {
		ord, err := sess.CreateRoot(rootName)
		if err != nil {
			return fmt.Errorf("create root %q: %w", rootName, err)
		}
		if err := sess.SetRoot(ord); err != nil {
			return err
		}
	}

	if opts.seedPath != "" {
		if err := seed(ctx, sess, opts.seedPath); err != nil {
			return err
		}
	}

	sh := shell.New(sess, cmd.OutOrStdout())
	if len(opts.exec) > 0 {
		return execLines(ctx, sh, opts.exec)
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		logger.Debug().Msg("Starting interactive shell")
		return sh.RunInteractive(ctx, shell.InteractiveConfig{
			Prompt:      cfg.Prompt,
			HistoryFile: cfg.HistoryFile,
			Stdin:       f,
			Stderr:      cmd.ErrOrStderr(),
		})
	}
	logger.Debug().Msg("Reading commands from stdin")
	return sh.RunScript(ctx, cmd.InOrStdin())
}

// seed loads the seed file and applies it to the selected root. Individual
// request failures are logged but do not stop startup.
func seed(ctx context.Context, sess *session.Session, path string) error {
	logger := util.GetLogger("main.seed")

	s, err := requests.LoadFile(path, sess.Sources())
	if err != nil {
		return fmt.Errorf("load seed %s: %w", path, err)
	}
	if err := sess.Seed(ctx, s); err != nil {
		logger.Warn().Err(err).Str("seed", path).Msg("Some seed requests failed")
	}
	return nil
}

// execLines runs each --exec command in order, printing errors the way the
// shell does
func execLines(ctx context.Context, sh *shell.Shell, lines []string) error {
	out := sh.Output()
	for _, line := range lines {
		if err := sh.Exec(ctx, line); err != nil {
			if errors.Is(err, shell.ErrExit) {
				return nil
			}
			if _, werr := io.WriteString(out, shell.Message(err)+"\n"); werr != nil {
				return werr
			}
		}
	}
	return nil
}
