package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/CunningBard/minase/internal"
	"github.com/CunningBard/minase/internal/table"
	"github.com/CunningBard/minase/tableclient"
)

// ---- History (own file) ----

type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(cmd string) error {
	cmd = compactOneLine(cmd)
	if cmd == "" || h.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, cmd); err != nil {
		return err
	}
	h.lines = append(h.lines, cmd)
	return nil
}

func (h *History) Print(w io.Writer, last int) {
	if last <= 0 || last > len(h.lines) {
		last = len(h.lines)
	}
	for i := len(h.lines) - last; i < len(h.lines); i++ {
		fmt.Fprintf(w, "%5d  %s\n", i+1, h.lines[i])
	}
}

// compactOneLine collapses runs of whitespace into single spaces.
func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ---- output ----

func printTable(w io.Writer, t *table.Table) {
	types := t.Types()
	if len(types) == 0 {
		fmt.Fprintln(w, "(empty table)")
		return
	}

	// 1) compute widths
	widths := make([]int, len(types))
	header := make([]string, len(types))
	for i, typ := range types {
		header[i] = typ.String()
		widths[i] = len(header[i])
	}
	rows := make([][]string, t.NumRows())
	for r := range rows {
		rows[r] = make([]string, len(types))
		for c := range types {
			col := t.Column(c)
			if r >= col.Len() {
				// ragged tables are only shown when strict_rows is off
				continue
			}
			s := fmt.Sprintf("%v", col.Value(r))
			rows[r][c] = s
			if len(s) > widths[c] {
				widths[c] = len(s)
			}
		}
	}

	printRow := func(values []string) {
		for i := range values {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprint(w, padRight(values[i], widths[i]))
		}
		fmt.Fprintln(w)
	}

	// 2) header, separator, rows
	printRow(header)
	for i := range widths {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		printRow(row)
	}

	fmt.Fprintf(w, "(%d rows)\n", t.NumRows())
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".minase_history"
	}
	return filepath.Join(home, ".minase_history")
}

func isMetaCommand(line string) bool {
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}

func run(ctx context.Context, cli *tableclient.Client, cmd string) {
	t, err := cli.Query(ctx, cmd)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	printTable(os.Stdout, t)
}

func main() {
	var (
		cfgPath  = flag.String("config", "", "yaml config file")
		addr     = flag.String("addr", "", "server address (overrides config)")
		histPath = flag.String("history", defaultHistoryPath(), "history file path")
		histMax  = flag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShot  = flag.String("c", "", "execute one command and exit")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	lvl, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	if *addr != "" {
		cfg.Client.Addr = *addr
	}

	ctx := context.Background()
	cli, err := tableclient.DialContext(ctx, cfg.Client.Addr, cfg.Client.DialTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cli.Close() }()

	cli.SetRWTimeout(cfg.Client.RWTimeout)
	cli.SetMaxFrameSize(cfg.Wire.MaxFrameSize)
	cli.SetStrictRows(cfg.Client.StrictRows)

	if cfg.Client.Handshake {
		if err := cli.Handshake(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "handshake: %v\n", err)
			os.Exit(1)
		}
	}

	// one-shot mode
	if strings.TrimSpace(*oneShot) != "" {
		t, err := cli.Query(ctx, compactOneLine(*oneShot))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printTable(os.Stdout, t)
		_ = cli.Exit(ctx)
		return
	}

	h := NewHistory(*histPath)
	if err := h.Load(*histMax); err != nil {
		slog.Warn("load history", "path", *histPath, "err", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "minase> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	fmt.Printf("connected to %s\n", cfg.Client.Addr)
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			// EOF
			fmt.Println()
			_ = cli.Exit(ctx)
			return
		}

		line = compactOneLine(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				_ = cli.Exit(ctx)
				return
			case "\\help":
				fmt.Println(`meta commands:
  \q | quit | exit       quit
  \history               print history
  \help                  show help

commands:
  select table <index>   fetch a whole table`)
			case "\\history":
				h.Print(os.Stdout, 50)
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		_ = h.Append(line)
		_ = rl.SaveHistory(line)

		run(ctx, cli, line)
	}
}
