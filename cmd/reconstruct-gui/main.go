// Command reconstruct-gui is a desktop front-end for the reconstruction: pick the folders,
// filter the images, run the COLMAP chain and open the resulting mesh.
package main

import (
	"flag"
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"github.com/askiada/go-reconstruct/internal/logging"
	"github.com/askiada/go-reconstruct/pkg/config"
)

func main() {
	fs := flag.NewFlagSet("reconstruct-gui", flag.ExitOnError)
	cfgFlags := config.RegisterFlags(fs)
	viewer := fs.String("viewer", "xdg-open", "program opening the mesh")
	_ = fs.Parse(os.Args[1:])

	cfg, err := cfgFlags.Config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconstruct-gui: %v\n", err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconstruct-gui: %v\n", err)
		os.Exit(2)
	}

	a := app.New()
	window := a.NewWindow("3D Reconstruction")
	ui := newReconstructUI(window, cfg, *viewer, log)
	window.SetContent(ui.build())
	window.Resize(fyne.NewSize(900, 640))
	window.ShowAndRun()
}
