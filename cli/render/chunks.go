package render

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/justapithecus/teller/types"
)

// barWidth is the width of the longest bar in a graph chunk.
const barWidth = 40

// Chunk renders a single stream chunk as plain text. Text chunks pass
// through unchanged; graph chunks become horizontal bars scaled to the
// largest value; table chunks become an aligned grid. Unknown chunk
// types render as a placeholder rather than being dropped, so a newer
// backend never silently loses content.
func Chunk(c types.Chunk) string {
	switch c.Type {
	case types.ChunkTypeText:
		return c.Content
	case types.ChunkTypeGraph:
		return graph(c)
	case types.ChunkTypeTable:
		return table(c)
	default:
		return fmt.Sprintf("[unsupported chunk type %q]", c.Type)
	}
}

// Chunks renders a message's chunks joined by blank lines, the way the
// chat transcript displays them.
func Chunks(cs []types.Chunk) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, Chunk(c))
	}
	return strings.Join(parts, "\n\n")
}

func graph(c types.Chunk) string {
	if len(c.Labels) == 0 {
		return "(empty graph)"
	}

	labelWidth := 0
	maxVal := 0.0
	for i, l := range c.Labels {
		if len(l) > labelWidth {
			labelWidth = len(l)
		}
		if v := c.Values[i]; v > maxVal {
			maxVal = v
		}
	}

	var b strings.Builder
	for i, l := range c.Labels {
		v := c.Values[i]
		n := 0
		if maxVal > 0 && v > 0 {
			n = int(v / maxVal * barWidth)
			if n == 0 {
				n = 1 // nonzero values always get a visible bar
			}
		}
		fmt.Fprintf(&b, "%-*s %s %.2f", labelWidth, l, strings.Repeat("█", n), v)
		if i < len(c.Labels)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func table(c types.Chunk) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(c.Headers, "\t"))
	for _, row := range c.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()

	return strings.TrimRight(b.String(), "\n")
}
