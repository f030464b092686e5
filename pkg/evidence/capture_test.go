package evidence

import (
	"errors"
	"reflect"
	"testing"
)

func TestPathsFromPorcelain(t *testing.T) {
	lines := []string{
		" M src/main.go",
		"?? tmp/debug.bin",
		"A  docs/new.md",
		"R  old/name.go -> new/name.go",
	}

	got := pathsFromPorcelain(lines)
	want := []string{"src/main.go", "tmp/debug.bin", "docs/new.md", "new/name.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pathsFromPorcelain = %v, want %v", got, want)
	}
}

func TestStatusLines(t *testing.T) {
	got := statusLines(" M src/main.go\n\n?? tmp/debug.bin\n")
	want := []string{" M src/main.go", "?? tmp/debug.bin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("statusLines = %v, want %v", got, want)
	}
}

func TestParseNumstat(t *testing.T) {
	t.Run("sums added and deleted", func(t *testing.T) {
		added, deleted, files := parseNumstat("4\t8\tdocs/readme.md\n10\t0\tsrc/new.go\n")
		if added != 14 || deleted != 8 || files != 2 {
			t.Errorf("got added=%d deleted=%d files=%d, want 14/8/2", added, deleted, files)
		}
	})

	t.Run("binary files count without line totals", func(t *testing.T) {
		added, deleted, files := parseNumstat("-\t-\tassets/logo.png\n3\t1\tsrc/a.go\n")
		if added != 3 || deleted != 1 || files != 2 {
			t.Errorf("got added=%d deleted=%d files=%d, want 3/1/2", added, deleted, files)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		added, deleted, files := parseNumstat("")
		if added != 0 || deleted != 0 || files != 0 {
			t.Error("empty numstat should yield zeros")
		}
	})
}

func TestCaptureString(t *testing.T) {
	if got := captureString("ok\n", nil); got != "ok\n" {
		t.Errorf("successful capture should pass through, got %q", got)
	}
	if got := captureString("", errors.New("boom")); got != "!! boom" {
		t.Errorf("failed capture should carry an error marker, got %q", got)
	}
}

func TestUnionSorted(t *testing.T) {
	got := unionSorted([]string{"b.txt", "a.txt"}, []string{"c.txt", "a.txt"})
	want := []string{"a.txt", "b.txt", "c.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unionSorted = %v, want %v", got, want)
	}
}
