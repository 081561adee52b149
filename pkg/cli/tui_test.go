package cli

import (
	"strings"
	"testing"
)

func TestSummaryRender(t *testing.T) {
	out := Summary{
		Styles: NewStyles(DefaultTheme),
		Title:  "spkembed",
		Fields: []Field{
			{"written", "2"},
			{"dim", "256"},
		},
	}.Render()

	for _, want := range []string{"spkembed", "written", "256"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	// Title, two fields, and the top and bottom border.
	if n := len(strings.Split(out, "\n")); n != 5 {
		t.Errorf("got %d lines, want 5:\n%s", n, out)
	}
}
