package shell

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/brettbedarf/kfs/internal/util"
)

// InteractiveConfig configures the line editor of [Shell.RunInteractive].
type InteractiveConfig struct {
	Prompt      string
	HistoryFile string // empty keeps history in memory
	Stdin       io.ReadCloser
	Stderr      io.Writer
}

// RunInteractive reads commands with line editing, history and tab completion
// until exit, EOF or ctx is done.
func (sh *Shell) RunInteractive(ctx context.Context, cfg InteractiveConfig) error {
	logger := util.GetLogger("Shell.RunInteractive")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		AutoComplete:    sh.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           cfg.Stdin,
		Stdout:          sh.out,
		Stderr:          cfg.Stderr,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start line editor")
		return err
	}
	defer rl.Close()

	sh.printf("-- kfs shell (%s) --\n\n", Version)
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if err := sh.Exec(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				break
			}
			sh.printf("%s\n", Message(err))
		}
	}
	sh.printf("\n")
	return ctx.Err()
}

// RunScript executes r line by line without prompting. Command errors are
// printed and do not stop the script; exit does.
func (sh *Shell) RunScript(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sh.Exec(ctx, scanner.Text()); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			sh.printf("%s\n", Message(err))
		}
	}
	return scanner.Err()
}

// completer completes command names and, for path commands, the names of the
// working directory's children
func (sh *Shell) completer() readline.AutoCompleter {
	children := func(string) []string {
		cwd, err := sh.sess.Cwd()
		if err != nil {
			return nil
		}
		var names []string
		for _, c := range cwd.Children() {
			name := c.Name()
			if c.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		return names
	}

	items := make([]readline.PrefixCompleterInterface, 0, len(sh.commands))
	for _, name := range sh.Commands() {
		if sh.commands[name].path {
			items = append(items, readline.PcItem(name, readline.PcItemDynamic(children)))
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// completions lists what the completer offers after line; used by tests
func (sh *Shell) completions(line string) []string {
	candidates, offset := sh.completer().Do([]rune(line), len(line))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, strings.TrimSpace(line[len(line)-offset:]+string(c)))
	}
	return out
}
