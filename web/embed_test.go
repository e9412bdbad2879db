package web

import (
	"io/fs"
	"strings"
	"testing"
)

func TestAssetsContainDashboard(t *testing.T) {
	for _, name := range []string{"index.html", "app.js"} {
		if _, err := fs.Stat(Assets(), name); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestDashboardHighlightsSource(t *testing.T) {
	index, err := fs.ReadFile(Assets(), "index.html")
	if err != nil {
		t.Fatalf("read index.html: %v", err)
	}
	if !strings.Contains(string(index), "highlight.min.js") {
		t.Error("index.html does not load highlight.js")
	}

	app, err := fs.ReadFile(Assets(), "app.js")
	if err != nil {
		t.Fatalf("read app.js: %v", err)
	}
	for _, want := range []string{"hljs.highlight(", "hljs.getLanguage("} {
		if !strings.Contains(string(app), want) {
			t.Errorf("app.js missing %s", want)
		}
	}
}
