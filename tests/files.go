package tests

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

// SingleStepTestNames returns the names (without extension) of all the
// SingleStepTests Z80 files: the base page, then the CB, ED, DD, FD, DDCB
// and FDCB pages. Some ED names have no file upstream.
func SingleStepTestNames() []string {
	var names []string
	for op := range 256 {
		switch op {
		case 0xCB, 0xDD, 0xED, 0xFD:
			continue
		}
		names = append(names, fmt.Sprintf("%02x", op))
	}
	for op := range 256 {
		names = append(names, fmt.Sprintf("cb %02x", op))
		names = append(names, fmt.Sprintf("ed %02x", op))
		names = append(names, fmt.Sprintf("dd cb __ %02x", op))
		names = append(names, fmt.Sprintf("fd cb __ %02x", op))
		switch op {
		case 0xCB, 0xDD, 0xED, 0xFD:
			continue
		}
		names = append(names, fmt.Sprintf("dd %02x", op))
		names = append(names, fmt.Sprintf("fd %02x", op))
	}
	return names
}

var errNotFound = errors.New("not found")

func download(url, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: %s", url, resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, resp.Body)
	return err
}

// download all SingleStepTests Z80 files into dest dir.
func downloadSingleStepTests(tb testing.TB, dest string) {
	const urlfmt = `https://raw.githubusercontent.com/SingleStepTests/z80/main/v1/%s.json`

	tempdir, err := os.MkdirTemp("", "singlestep.z80.tests.*")
	if err != nil {
		tb.Fatal(err)
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for _, name := range SingleStepTestNames() {
		url := fmt.Sprintf(urlfmt, name)

		g.Go(func() error {
			err := download(url, filepath.Join(tempdir, name+".json"))
			if errors.Is(err, errNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			tb.Log("downloaded", url)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		tb.Fatalf("failed to download all files: %s", err)
	}

	tb.Log("renaming", tempdir, "to", dest)
	if err := os.Rename(tempdir, dest); err != nil {
		tb.Fatal(err)
	}
}

var sstPathOnce sync.Once
var sstPath string

// SingleStepTestsPath returns the directory holding the SingleStepTests
// Z80 json files, downloading them on first use.
func SingleStepTestsPath(tb testing.TB) string {
	sstPathOnce.Do(func() {
		_, b, _, _ := runtime.Caller(0)
		testsDir := filepath.Join(filepath.Dir(b), "singlestep.z80.tests")

		if _, err := os.Stat(testsDir); errors.Is(err, fs.ErrNotExist) {
			tb.Log("singlestep.z80.tests directory not found, downloading it...")
			downloadSingleStepTests(tb, testsDir)
			tb.Log("SingleStepTests downloaded in", testsDir)
		}
		sstPath = testsDir
	})
	return sstPath
}
