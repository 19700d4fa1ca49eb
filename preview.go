package img2ascii

// LineKind tags a console line for styling.
type LineKind int

const (
	LineNormal LineKind = iota
	LineSystem
	LineError
)

func (k LineKind) String() string {
	switch k {
	case LineSystem:
		return "system"
	case LineError:
		return "error"
	}
	return "normal"
}

// LineSink receives console output one line at a time.
type LineSink interface {
	WriteLine(line string, kind LineKind)
}

// LineSinkFunc adapts a function to LineSink.
type LineSinkFunc func(line string, kind LineKind)

func (f LineSinkFunc) WriteLine(line string, kind LineKind) { f(line, kind) }

// discardSink drops everything; used when no sink is configured.
type discardSink struct{}

func (discardSink) WriteLine(string, LineKind) {}

// Preview forwards every row of grid to sink in order as a normal line
// and returns the number of rows written.
func Preview(grid *CharacterGrid, sink LineSink) int {
	if grid == nil || sink == nil {
		return 0
	}
	for y := 0; y < grid.Height; y++ {
		sink.WriteLine(grid.Line(y), LineNormal)
	}
	return grid.Height
}
