package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

var title = cases.Title(language.English)

// renderTree prints the artifact tree with selection marks. Collapsed directories hide
// their children unless all is set.
func renderTree(w io.Writer, snap mutation.ArtifactSnapshot, all bool) {
	selected := make(map[string]bool, len(snap.Selected))
	for _, id := range snap.Selected {
		selected[id] = true
	}
	expanded := make(map[string]bool, len(snap.Expanded))
	for _, id := range snap.Expanded {
		expanded[id] = true
	}

	var walk func(nodes []*tree.Node, depth int)
	walk = func(nodes []*tree.Node, depth int) {
		for _, n := range nodes {
			mark := "[ ]"
			if selected[n.ID] {
				mark = "[x]"
			}
			fold := " "
			if n.IsDir() {
				fold = "+"
				if all || expanded[n.ID] {
					fold = "-"
				}
			}
			size := ""
			if !n.IsDir() {
				size = "  " + tree.FormatSize(n.Size)
			}
			fmt.Fprintf(w, "%s %s%s %s  (%s%s)\n", mark, strings.Repeat("  ", depth), fold, n.Name, title.String(string(n.Kind)), size)
			if n.IsDir() && (all || expanded[n.ID]) {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(snap.Roots, 0)
}

// renderTags prints a tag table with row indices.
func renderTags(w io.Writer, tags []models.Tag, selected []int) {
	marks := make(map[int]bool, len(selected))
	for _, i := range selected {
		marks[i] = true
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{"", title.String("index"), title.String("key"), title.String("value"), title.String("created by")}, "\t"))
	for i, t := range tags {
		mark := " "
		if marks[i] {
			mark = "x"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", mark, i, t.Key, t.Value, t.CreatedBy)
	}
	_ = tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// confirm asks a y/N question and reports whether the answer was yes.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	var response string
	_, _ = fmt.Fscanln(in, &response)
	return strings.ToLower(strings.TrimSpace(response)) == "y"
}
