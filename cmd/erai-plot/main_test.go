package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rtm0/erawp/internal/erai"
	"github.com/rtm0/erawp/internal/erai/eraitest"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "test_new.nc")
	if err := eraitest.Default().Write(in); err != nil {
		t.Fatal(err)
	}

	old := []string{*file, *prefix, *csvFile, *ncFile}
	*file = in
	*prefix = filepath.Join(dir, "w_precip")
	*csvFile = filepath.Join(dir, "points.csv")
	*ncFile = filepath.Join(dir, "regions.nc")
	defer func() { *file, *prefix, *csvFile, *ncFile = old[0], old[1], old[2], old[3] }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := run(logger); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, name := range []string{"w_precip_lsp.png", "w_precip_cp.png", "points.csv", "regions.nc"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	b, err := os.ReadFile(*csvFile)
	if err != nil {
		t.Fatal(err)
	}
	// Header plus 78 mid-latitude and 6 sub-region points, once per
	// precipitation field.
	if n := len(strings.Split(strings.TrimSpace(string(b)), "\n")); n != 1+2*(78+6) {
		t.Errorf("unexpected number of CSV lines %d", n)
	}

	ds, err := erai.Open(*ncFile)
	if err != nil {
		t.Fatalf("could not open exported file: %v", err)
	}
	defer ds.Close()
	g, err := ds.Field("cp_subregion", 0)
	if err != nil {
		t.Fatalf("exported field missing: %v", err)
	}
	n := 0
	for _, m := range g.Missing {
		if !m {
			n++
		}
	}
	if n != 6 {
		t.Errorf("unexpected number of exported sub-region points %d", n)
	}
}

func TestRunMissingFile(t *testing.T) {
	old := *file
	*file = filepath.Join(t.TempDir(), "missing.nc")
	defer func() { *file = old }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := run(logger); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
