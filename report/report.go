package report

import "fmt"

// Pos is a line/column position in the source text. Lines and columns
// are numbered from 1; the zero value marks a node with no position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Diagnostic is an error tied to a source position. Every diagnostic
// stops code generation; there is no lesser severity.
type Diagnostic struct {
	Pos     Pos
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: error: %s", d.Pos, d.Message)
}

// Reporter collects diagnostics in the order they were reported. It is
// append-only: entries are never removed or rewritten, and the error
// count is what gates each pass of the pipeline.
type Reporter struct {
	diags []Diagnostic
}

func NewReporter() *Reporter {
	return &Reporter{}
}

func (r *Reporter) Report(pos Pos, format string, args ...interface{}) {
	r.diags = append(r.diags, Diagnostic{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (r *Reporter) ErrorCount() int {
	return len(r.diags)
}

func (r *Reporter) Diagnostics() []Diagnostic {
	return r.diags
}
