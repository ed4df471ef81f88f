package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"jsoncal/internal/jsonschema"
	"jsoncal/internal/rule"
)

// printer writes human-readable diagnostics, colored when w is a terminal.
type printer struct {
	w io.Writer

	good *color.Color
	bad  *color.Color
	path *color.Color
	dim  *color.Color
	add  *color.Color
	del  *color.Color
}

func newPrinter(w io.Writer) *printer {
	color.NoColor = !colorEnabled(w)
	return &printer{
		w:    w,
		good: color.New(color.FgGreen, color.Bold),
		bad:  color.New(color.FgRed, color.Bold),
		path: color.New(color.FgYellow),
		dim:  color.New(color.Faint),
		add:  color.New(color.FgGreen),
		del:  color.New(color.FgRed),
	}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) valid(name, detail string) {
	fmt.Fprintf(p.w, "%s %s: %s\n", p.good.Sprint("ok"), name, detail)
}

func (p *printer) failed(name string, err error) {
	fmt.Fprintf(p.w, "%s %s: %v\n", p.bad.Sprint("error"), name, err)
}

func (p *printer) invalid(name string, issues rule.Issues) {
	fmt.Fprintf(p.w, "%s %s: %d issue(s)\n", p.bad.Sprint("invalid"), name, len(issues))
	for _, is := range issues {
		p.issue("  ", is)
		// Union failures list why each alternative was rejected.
		for i, alt := range is.Alternatives {
			for _, sub := range alt {
				p.issue(fmt.Sprintf("    alternative %d: ", i+1), sub)
			}
		}
	}
}

func (p *printer) issue(indent string, is rule.Issue) {
	path := is.Path.String()
	if path == "" {
		path = "<root>"
	}
	fmt.Fprintf(p.w, "%s%s: %s %s\n", indent, p.path.Sprint(path), is.Message, p.dim.Sprintf("[%s]", is.Kind))
}

func (p *printer) mismatches(ms []jsonschema.Mismatch) {
	fmt.Fprintf(p.w, "%s contract: %d mismatch(es)\n", p.bad.Sprint("invalid"), len(ms))
	for _, m := range ms {
		fmt.Fprintf(p.w, "  %s: %s\n", p.path.Sprint(m.Path), m.Message)
	}
}

// diff prints the changed lines between want and got, prefixed with - and +.
func (p *printer) diff(want, got string) {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(want, got)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	fmt.Fprintln(p.w, p.dim.Sprint("--- canonical"))
	fmt.Fprintln(p.w, p.dim.Sprint("+++ exported"))
	for _, d := range diffs {
		var prefix string
		var c *color.Color
		switch d.Type {
		case diffpatch.DiffDelete:
			prefix, c = "- ", p.del
		case diffpatch.DiffInsert:
			prefix, c = "+ ", p.add
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			fmt.Fprint(p.w, c.Sprint(prefix+strings.TrimSuffix(line, "\n"))+"\n")
		}
	}
}
