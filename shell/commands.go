package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/filesystem"
	"github.com/brettbedarf/kfs/sources"
)

func commandTable() []*command {
	return []*command{
		{name: "cd", usage: "cd <dir>", help: "change the working directory", path: true, run: cmdCd},
		{name: "pwd", usage: "pwd", help: "print the working directory", run: cmdPwd},
		{name: "ls", usage: "ls [-l] [path]", help: "list a directory", path: true, run: cmdLs},
		{name: "mkdir", usage: "mkdir <dir>", help: "create a directory", path: true, run: cmdMkdir},
		{name: "mkfile", usage: "mkfile <file>", help: "create an empty file", path: true, run: cmdMkfile},
		{name: "rmdir", usage: "rmdir <dir>", help: "remove a directory and its contents", path: true, run: cmdRmdir},
		{name: "rm", usage: "rm <file>", help: "remove a file", path: true, run: cmdRm},
		{name: "copyto", usage: "copyto <file> <host-path|url>", help: "replace a file's content from the host or a URL", path: true, run: cmdCopyto},
		{name: "cat", usage: "cat <file>", help: "print a file", path: true, run: cmdCat},
		{name: "stat", usage: "stat <path>", help: "show node details", path: true, run: cmdStat},
		{name: "sum", usage: "sum <file>", help: "print the BLAKE3 digest of a file", path: true, run: cmdSum},
		{name: "open", usage: "open <path>", help: "open a handle and print its number", path: true, run: cmdOpen},
		{name: "read", usage: "read <fd> [n]", help: "read n bytes (default: the rest) from a handle", run: cmdRead},
		{name: "write", usage: "write <fd> <text>...", help: "write text at the handle's offset", run: cmdWrite},
		{name: "seek", usage: "seek <fd> <offset> [set|cur|end]", help: "move a handle's offset", run: cmdSeek},
		{name: "tell", usage: "tell <fd>", help: "print a handle's offset", run: cmdTell},
		{name: "rewind", usage: "rewind <fd>", help: "move a handle's offset to 0", run: cmdRewind},
		{name: "close", usage: "close <fd>", help: "close a handle", run: cmdClose},
		{name: "handles", usage: "handles", help: "list open handles", run: cmdHandles},
		{name: "createroot", usage: "createroot <name>", help: "create a root directory", run: cmdCreateRoot},
		{name: "deleteroot", usage: "deleteroot <n>", help: "delete root n and everything in it", run: cmdDeleteRoot},
		{name: "listroot", usage: "listroot", help: "list roots with their numbers", run: cmdListRoot},
		{name: "setroot", usage: "setroot <n>", help: "select root n", run: cmdSetRoot},
		{name: "getroot", usage: "getroot", help: "print the selected root", run: cmdGetRoot},
		{name: "help", usage: "help", help: "show this help", run: cmdHelp},
		{name: "exit", usage: "exit", help: "leave the shell", run: cmdExit},
	}
}

func cmdCd(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	return sh.sess.Cd(args[0])
}

func cmdPwd(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 0); err != nil {
		return err
	}
	pwd, err := sh.sess.Pwd()
	if err != nil {
		return err
	}
	sh.printf("%s\n", pwd)
	return nil
}

func cmdLs(_ context.Context, sh *Shell, args []string) error {
	long := len(args) > 0 && args[0] == "-l"
	if long {
		args = args[1:]
	}
	if err := argsBetween(args, 0, 1); err != nil {
		return err
	}
	p := ""
	if len(args) == 1 {
		p = args[0]
	}

	nodes, err := sh.sess.List(p)
	if err != nil {
		return err
	}
	if !long {
		for _, n := range nodes {
			sh.printf("%s\n", n.Name())
		}
		return nil
	}

	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		size := "-"
		if n.IsFile() {
			size = humanize.IBytes(uint64(n.Size()))
		}
		rows = append(rows, []string{string(n.Kind()), size, n.Name()})
	}
	printTable(sh.out, []string{"Kind", "Size", "Name"}, rows)
	return nil
}

func cmdMkdir(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	_, err := sh.sess.Mkdir(args[0])
	return err
}

func cmdMkfile(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	_, err := sh.sess.Mkfile(args[0])
	return err
}

func cmdRmdir(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	return sh.sess.Rmdir(args[0])
}

func cmdRm(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	return sh.sess.Rm(args[0])
}

func cmdCopyto(ctx context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 2); err != nil {
		return err
	}
	raw, err := sourceDefinition(args[1])
	if err != nil {
		return err
	}
	src, err := sh.sess.Sources().NewSource(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", errSyntax, err)
	}
	n, err := sh.sess.CopyTo(ctx, args[0], src)
	if err != nil {
		return err
	}
	sh.printf("%s copied\n", humanize.IBytes(uint64(n)))
	return nil
}

// sourceDefinition builds the JSON definition for a copyto source: URLs use
// the http source, anything else is a host path
func sourceDefinition(arg string) ([]byte, error) {
	def := map[string]string{"type": sources.LocalSourceType, "path": arg}
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		def = map[string]string{"type": sources.HTTPSourceType, "url": arg}
	}
	return json.Marshal(def)
}

func cmdCat(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	fh, err := sh.sess.Open(args[0])
	if err != nil {
		return err
	}
	defer fh.Close()

	data, err := io.ReadAll(fh)
	if err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err = sh.out.Write(data)
	return err
}

func cmdStat(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	node, err := sh.sess.Resolve(args[0])
	if err != nil {
		return err
	}
	p, err := node.Path()
	if err != nil {
		return err
	}

	pairs := [][2]string{
		{"Name", node.Name()},
		{"Path", "/" + p},
		{"Kind", string(node.Kind())},
	}
	if node.IsDir() {
		pairs = append(pairs, [2]string{"Children", strconv.Itoa(node.ChildCount())})
	} else {
		segments := 0
		if chain := node.Storage(); chain != nil {
			segments = chain.Len()
		}
		pairs = append(pairs,
			[2]string{"Size", fmt.Sprintf("%s (%d bytes)", humanize.IBytes(uint64(node.Size())), node.Size())},
			[2]string{"Segments", strconv.Itoa(segments)},
		)
	}
	printPairs(sh.out, pairs)
	return nil
}

func cmdSum(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	fh, err := sh.sess.Open(args[0])
	if err != nil {
		return err
	}
	defer fh.Close()

	sum, err := fh.Sum()
	if err != nil {
		return err
	}
	sh.printf("%x  %s\n", sum, args[0])
	return nil
}

func cmdOpen(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	fh, err := sh.sess.Open(args[0])
	if err != nil {
		return err
	}
	sh.printf("fd %d\n", fh.ID())
	return nil
}

func cmdRead(_ context.Context, sh *Shell, args []string) error {
	if err := argsBetween(args, 1, 2); err != nil {
		return err
	}
	fh, err := sh.handle(args[0])
	if err != nil {
		return err
	}

	var r io.Reader = fh
	if len(args) == 2 {
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || n < 0 {
			return errSyntax
		}
		// the count is user input; never size a buffer from it
		r = io.LimitReader(fh, n)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	sh.printf("%s\n", data)
	return nil
}

func cmdWrite(_ context.Context, sh *Shell, args []string) error {
	if err := argsBetween(args, 2, len(args)); err != nil {
		return err
	}
	fh, err := sh.handle(args[0])
	if err != nil {
		return err
	}

	text := strings.Join(args[1:], " ")
	n, err := fh.Write([]byte(text))
	if errors.Is(err, io.ErrShortWrite) {
		sh.printf("%d bytes written (truncated from %d)\n", n, len(text))
		return nil
	}
	if err != nil {
		return err
	}
	sh.printf("%d bytes written\n", n)
	return nil
}

func cmdSeek(_ context.Context, sh *Shell, args []string) error {
	if err := argsBetween(args, 2, 3); err != nil {
		return err
	}
	fh, err := sh.handle(args[0])
	if err != nil {
		return err
	}
	offset, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errSyntax
	}
	whence := io.SeekStart
	if len(args) == 3 {
		switch args[2] {
		case "set":
		case "cur":
			whence = io.SeekCurrent
		case "end":
			whence = io.SeekEnd
		default:
			return errSyntax
		}
	}

	pos, err := fh.Seek(offset, whence)
	if err != nil {
		return err
	}
	sh.printf("%d\n", pos)
	return nil
}

func cmdTell(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	fh, err := sh.handle(args[0])
	if err != nil {
		return err
	}
	pos, err := fh.Tell()
	if err != nil {
		return err
	}
	sh.printf("%d\n", pos)
	return nil
}

func cmdRewind(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	fh, err := sh.handle(args[0])
	if err != nil {
		return err
	}
	return fh.Rewind()
}

func cmdClose(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	fh, err := sh.handle(args[0])
	if err != nil {
		return err
	}
	return fh.Close()
}

func cmdHandles(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 0); err != nil {
		return err
	}
	handles := sh.sess.FS().Handles()
	if len(handles) == 0 {
		sh.printf("No open handles\n")
		return nil
	}

	rows := make([][]string, 0, len(handles))
	for _, fh := range handles {
		st, err := fh.Stat()
		if err != nil {
			rows = append(rows, []string{strconv.FormatUint(fh.ID(), 10), "(deleted)", "", "", ""})
			continue
		}
		rows = append(rows, []string{
			strconv.FormatUint(st.ID, 10),
			"/" + st.Path,
			string(st.Kind),
			strconv.Itoa(st.Offset),
			humanize.IBytes(uint64(st.Capacity)),
		})
	}
	printTable(sh.out, []string{"FD", "Path", "Kind", "Offset", "Size"}, rows)
	return nil
}

func cmdCreateRoot(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	_, err := sh.sess.CreateRoot(args[0])
	return err
}

func cmdDeleteRoot(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	ord, err := sh.ordinal(args[0])
	if err != nil {
		return err
	}
	return sh.sess.DeleteRoot(ord)
}

func cmdListRoot(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 0); err != nil {
		return err
	}
	roots := sh.sess.Roots()
	if len(roots) == 0 {
		sh.printf("No root nodes\n")
		return nil
	}
	for i, r := range roots {
		sh.printf("%2d: %s\n", i+1, r.Name())
	}
	return nil
}

func cmdSetRoot(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 1); err != nil {
		return err
	}
	ord, err := sh.ordinal(args[0])
	if err != nil {
		return err
	}
	return sh.sess.SetRoot(ord)
}

func cmdGetRoot(_ context.Context, sh *Shell, args []string) error {
	if err := argsExactly(args, 0); err != nil {
		return err
	}
	root, ord, err := sh.sess.Root()
	if kfs.IsCode(err, kfs.ErrNoRoot) {
		sh.printf("No current root node set\n")
		return nil
	}
	if err != nil {
		return err
	}
	sh.printf("%d: %s\n", ord, root.Name())
	return nil
}

func cmdHelp(_ context.Context, sh *Shell, _ []string) error {
	for _, c := range commandTable() {
		sh.printf("  %-34s %s\n", c.usage, c.help)
	}
	return nil
}

func cmdExit(context.Context, *Shell, []string) error {
	return ErrExit
}

// ordinal parses a root number as printed by listroot
func (sh *Shell) ordinal(arg string) (int, error) {
	ord, err := strconv.Atoi(arg)
	if err != nil || ord < 1 {
		return 0, errSyntax
	}
	if ord > len(sh.sess.Roots()) {
		return 0, errOutOfBounds
	}
	return ord, nil
}

// handle looks up an open handle by its printed number
func (sh *Shell) handle(arg string) (*filesystem.FileHandle, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return nil, errSyntax
	}
	return sh.sess.FS().Handle(id)
}
