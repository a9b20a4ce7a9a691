package main

import (
	"bytes"
	"io"
	"os"

	"github.com/dimiro1/banner"
	"github.com/mattn/go-isatty"
)

const version = "dev"

// printBanner writes the startup banner when w is a terminal.
func printBanner(w io.Writer) {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return
	}
	tpl := "{{ .Title \"SENTIENT\" \"\" 0 }}\nVersion: " + version + "\n"
	banner.Init(w, true, true, bytes.NewBufferString(tpl))
}
