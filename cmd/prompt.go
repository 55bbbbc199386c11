package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/fatih/color"

	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
)

var (
	indexColor   = color.New(color.FgCyan, color.Bold)
	processColor = color.New(color.FgHiBlack)
	phraseColor  = color.New(color.FgYellow, color.Bold)
)

// parseIndexes parses a window selection such as "1,3" or "2 4".
func parseIndexes(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if len(fields) == 0 {
		return nil, errors.New("no windows selected")
	}

	seen := make(map[int]struct{}, len(fields))
	out := make([]int, 0, len(fields))

	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid window index %q", f)
		}

		if _, dup := seen[n]; dup {
			continue
		}

		seen[n] = struct{}{}
		out = append(out, n)
	}

	return out, nil
}

// selectWindows resolves a selection string against list.
func selectWindows(list []enumerator.Descriptor, selection string) ([]enumerator.Descriptor, error) {
	indexes, err := parseIndexes(selection)
	if err != nil {
		return nil, err
	}

	found, missing := enumerator.ByIndex(list, indexes)
	if len(missing) > 0 {
		return nil, fmt.Errorf("no window with index %v (1-%d available)", missing, len(list))
	}

	return found, nil
}

// printWindows writes one numbered line per window.
func printWindows(w io.Writer, list []enumerator.Descriptor) {
	for _, d := range list {
		fmt.Fprintf(w, "%s %s %s\n",
			indexColor.Sprintf("%3d", d.Index),
			d.Title,
			processColor.Sprintf("(%s)", d.ProcessName),
		)
	}
}

// promptWindows asks for a selection until a valid one is entered.
func promptWindows(in *bufio.Reader, out io.Writer, list []enumerator.Descriptor) ([]enumerator.Descriptor, error) {
	if len(list) == 0 {
		return nil, errors.New("no selectable windows are open")
	}

	printWindows(out, list)

	for {
		fmt.Fprint(out, "Allow which windows? (e.g. 1,3): ")

		line, err := in.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return nil, fmt.Errorf("read selection: %w", err)
		}

		found, selErr := selectWindows(list, line)
		if selErr == nil {
			return found, nil
		}

		if err != nil {
			return nil, selErr
		}

		fmt.Fprintf(out, "%v\n", selErr)
	}
}

// lineConfirmer asks for the confirmation phrase on the console.
type lineConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

type readResult struct {
	line string
	err  error
}

// Confirm prints the phrase and returns the next line typed. A pending read is
// abandoned when ctx ends.
func (c *lineConfirmer) Confirm(ctx context.Context, phrase string) (string, error) {
	fmt.Fprintf(c.out, "\nTo end the session early, type: %s\n> ", phraseColor.Sprint(phrase))

	done := make(chan readResult, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		done <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil && r.line == "" {
			return "", fmt.Errorf("read phrase: %w", r.err)
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}
