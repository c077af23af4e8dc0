package common

import (
	"fmt"
	"io"
	"os"

	"github.com/ternarybob/banner"
)

const bannerKeyWidth = 14

// PrintBanner writes the application banner, with the resolved storage
// settings when config is set, to w
func PrintBanner(w io.Writer, config *Config, version string) {
	out, err := captureStdout(func() {
		b := banner.New().SetStyle(banner.StyleDouble).SetWidth(60)
		if w == os.Stdout {
			b.SetBold(true)
		} else {
			b.SetBorderColor("")
		}
		b.PrintTopLine()
		b.PrintCenteredText("Failscope")
		b.PrintCenteredText("v" + version)
		if config != nil {
			archive := "disabled"
			if config.Archive.Enabled {
				archive = config.ArchivePath()
			}
			b.PrintSeparatorLine()
			b.PrintKeyValue("Failure logs", config.Storage.Dir, bannerKeyWidth)
			b.PrintKeyValue("Screenshots", config.ScreenshotPath(), bannerKeyWidth)
			b.PrintKeyValue("Run archive", archive, bannerKeyWidth)
			b.PrintKeyValue("History runs", fmt.Sprintf("%d", config.Analysis.HistoryRuns), bannerKeyWidth)
		}
		b.PrintBottomLine()
	})
	if err != nil {
		fmt.Fprintf(w, "Failscope v%s\n", version)
		return
	}
	io.WriteString(w, out)
	fmt.Fprintln(w)
}

// captureStdout runs fn with os.Stdout redirected to a pipe; the banner
// library only prints to the process stdout
func captureStdout(fn func()) (string, error) {
	r, pw, err := os.Pipe()
	if err != nil {
		return "", err
	}
	defer r.Close()

	done := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()

	orig := os.Stdout
	os.Stdout = pw
	func() {
		defer func() { os.Stdout = orig }()
		fn()
	}()
	pw.Close()
	return <-done, nil
}
