// Package triangle drives the compiler pipeline: scan, parse, check,
// optionally fold constants, and encode. Each pass runs only when the
// previous passes reported no errors, so later passes may assume a
// well-formed input.
package triangle

import (
	"triangle/checker"
	"triangle/encoder"
	"triangle/folder"
	"triangle/machine"
	"triangle/parser"
	"triangle/report"
	"triangle/scanner"
)

// Options selects optional passes.
type Options struct {
	// Folding enables the constant folding pass between checking and
	// encoding.
	Folding bool
}

// Compile runs the full pipeline over src. The reporter always comes
// back, carrying whatever diagnostics were produced; the program is
// nil when any pass reported errors. A non-nil error means the
// compiler itself went wrong, not the source program.
func Compile(src []byte, opts Options) (*machine.Program, *report.Reporter, error) {
	reporter := report.NewReporter()

	tokens := scanner.New(src, reporter).Tokenize()
	if reporter.ErrorCount() > 0 {
		return nil, reporter, nil
	}

	prog := parser.Parse(tokens, reporter)
	if reporter.ErrorCount() > 0 || prog == nil {
		return nil, reporter, nil
	}

	checker.Check(prog, reporter)
	if reporter.ErrorCount() > 0 {
		return nil, reporter, nil
	}

	if opts.Folding {
		folder.Fold(prog)
	}

	obj, err := encoder.Encode(prog)
	if err != nil {
		return nil, reporter, err
	}
	return obj, reporter, nil
}
