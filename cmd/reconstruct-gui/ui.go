package main

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-reconstruct/pkg/colmap"
	"github.com/askiada/go-reconstruct/pkg/config"
	"github.com/askiada/go-reconstruct/pkg/imagefilter"
	"github.com/askiada/go-reconstruct/pkg/pipeline"
	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
	"github.com/askiada/go-reconstruct/pkg/pipeline/progress"
)

const maxLogLines = 2000

var errBusy = errors.New("a task is already running")

type reconstructUI struct {
	window fyne.Window
	base   config.Config
	log    logrus.FieldLogger

	input, output, workspace, engine, viewer *widget.Entry
	denoise, enhance, sharpen                *widget.Check
	processBtn, reconstructBtn, visualizeBtn *widget.Button
	cancelBtn                                *widget.Button
	progress                                 *widget.ProgressBar
	status                                   *widget.Label
	logView                                  *widget.Entry
	lines                                    []string

	mu     sync.Mutex
	cancel context.CancelFunc
	mesh   string
}

func newReconstructUI(window fyne.Window, base config.Config, viewer string, log logrus.FieldLogger) *reconstructUI {
	ui := &reconstructUI{window: window, base: base, log: log}

	ui.input = folderEntry(base.InputFolder)
	ui.output = folderEntry(base.OutputFolder)
	ui.workspace = folderEntry(base.WorkspaceFolder)
	ui.engine = widget.NewEntry()
	ui.engine.SetText(base.ColmapExecutable)
	ui.viewer = widget.NewEntry()
	ui.viewer.SetText(viewer)

	ui.denoise = widget.NewCheck("Denoise", nil)
	ui.denoise.SetChecked(base.ApplyDenoise)
	ui.enhance = widget.NewCheck("Enhance", nil)
	ui.enhance.SetChecked(base.ApplyEnhance)
	ui.sharpen = widget.NewCheck("Sharpen", nil)
	ui.sharpen.SetChecked(base.ApplySharpen)

	ui.processBtn = widget.NewButton("Process images", ui.processImages)
	ui.reconstructBtn = widget.NewButton("Reconstruct", ui.reconstruct)
	ui.visualizeBtn = widget.NewButton("Visualize", ui.visualize)
	ui.visualizeBtn.Disable()
	ui.cancelBtn = widget.NewButton("Cancel", ui.cancelTask)
	ui.cancelBtn.Disable()

	ui.progress = widget.NewProgressBar()
	ui.status = widget.NewLabel("Ready")
	ui.logView = widget.NewMultiLineEntry()
	ui.logView.Wrapping = fyne.TextWrapWord

	return ui
}

func folderEntry(value string) *widget.Entry {
	entry := widget.NewEntry()
	entry.SetText(value)

	return entry
}

func (ui *reconstructUI) build() fyne.CanvasObject {
	form := widget.NewForm(
		widget.NewFormItem("Input folder", ui.withBrowse(ui.input)),
		widget.NewFormItem("Output folder", ui.withBrowse(ui.output)),
		widget.NewFormItem("Workspace folder", ui.withBrowse(ui.workspace)),
		widget.NewFormItem("COLMAP executable", ui.engine),
		widget.NewFormItem("Mesh viewer", ui.viewer),
	)
	filters := container.NewHBox(ui.denoise, ui.enhance, ui.sharpen)
	buttons := container.NewHBox(ui.processBtn, ui.reconstructBtn, ui.visualizeBtn, ui.cancelBtn)
	top := container.NewVBox(form, filters, buttons, ui.progress, ui.status)

	return container.NewBorder(top, nil, nil, nil, ui.logView)
}

func (ui *reconstructUI) withBrowse(entry *widget.Entry) fyne.CanvasObject {
	browse := widget.NewButton("Browse", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				dialog.ShowError(err, ui.window)

				return
			}
			if uri != nil {
				entry.SetText(uri.Path())
			}
		}, ui.window)
	})

	return container.NewBorder(nil, nil, nil, browse, entry)
}

// config reads the form on top of the configuration given at start up.
func (ui *reconstructUI) config() (config.Validated, error) {
	cfg := ui.base
	cfg.InputFolder = ui.input.Text
	cfg.OutputFolder = ui.output.Text
	cfg.WorkspaceFolder = ui.workspace.Text
	cfg.ColmapExecutable = ui.engine.Text
	cfg.ApplyDenoise = ui.denoise.Checked
	cfg.ApplyEnhance = ui.enhance.Checked
	cfg.ApplySharpen = ui.sharpen.Checked

	return config.Validate(cfg)
}

// begin reserves the UI for one task. It must run on the UI goroutine.
func (ui *reconstructUI) begin(status string) (context.Context, error) {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if ui.cancel != nil {
		return nil, errBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	ui.cancel = cancel

	ui.processBtn.Disable()
	ui.reconstructBtn.Disable()
	ui.visualizeBtn.Disable()
	ui.cancelBtn.Enable()
	ui.progress.SetValue(0)
	ui.status.SetText(status)

	return ctx, nil
}

// end releases the UI. It must run on the UI goroutine.
func (ui *reconstructUI) end(status string) {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if ui.cancel != nil {
		ui.cancel()
		ui.cancel = nil
	}
	ui.processBtn.Enable()
	ui.reconstructBtn.Enable()
	ui.cancelBtn.Disable()
	if ui.mesh != "" {
		ui.visualizeBtn.Enable()
	}
	ui.status.SetText(status)
}

func (ui *reconstructUI) cancelTask() {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if ui.cancel != nil {
		ui.cancel()
		ui.status.SetText("Cancelling after the current step…")
	}
}

func (ui *reconstructUI) appendLog(line string) {
	ui.lines = append(ui.lines, line)
	if len(ui.lines) > maxLogLines {
		ui.lines = ui.lines[len(ui.lines)-maxLogLines:]
	}
	ui.logView.SetText(strings.Join(ui.lines, "\n"))
	ui.logView.CursorRow = len(ui.lines)
}

// watch shows every event of sub, calling onEvent on the UI goroutine first.
func (ui *reconstructUI) watch(sub *progress.Subscription, onEvent func(model.Event)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		progress.Each(context.Background(), sub, func(event model.Event) {
			fyne.Do(func() {
				if onEvent != nil {
					onEvent(event)
				}
				ui.appendLog(event.String())
			})
		})
	}()

	return done
}

func (ui *reconstructUI) processImages() {
	cfg, err := ui.config()
	if err != nil {
		dialog.ShowError(err, ui.window)

		return
	}
	if cfg.OutputFolder() == "" {
		dialog.ShowError(errors.New("choose an output folder for the processed images"), ui.window)

		return
	}
	opts := imagefilter.OptionsFrom(cfg)
	jobs, err := imagefilter.Jobs(cfg.InputFolder(), cfg.OutputFolder(), opts)
	if err != nil {
		dialog.ShowError(err, ui.window)

		return
	}
	ctx, err := ui.begin("Processing images…")
	if err != nil {
		dialog.ShowError(err, ui.window)

		return
	}

	events := progress.New()
	done := 0
	watched := ui.watch(events.Subscribe(), func(event model.Event) {
		if event.Type == model.FileProcessedEvent || event.Type == model.FileFailedEvent {
			done++
			if len(jobs) > 0 {
				ui.progress.SetValue(float64(done) / float64(len(jobs)))
			}
		}
	})

	filter := imagefilter.New(
		imagefilter.WithWorkers(cfg.Workers()),
		imagefilter.WithLogger(ui.log),
		imagefilter.WithPublisher(events),
	)
	go func() {
		summary, err := filter.Process(ctx, cfg.InputFolder(), cfg.OutputFolder(), opts)
		events.Close()
		<-watched

		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, ui.window)
				ui.end("Image processing failed")

				return
			}
			ui.end(fmt.Sprintf("Images: %d processed, %d failed, %d skipped", summary.Processed, summary.Failed, summary.Skipped))
		})
	}()
}

func (ui *reconstructUI) reconstruct() {
	cfg, err := ui.config()
	if err != nil {
		dialog.ShowError(err, ui.window)

		return
	}
	pipe, err := colmap.New(cfg, pipeline.WithLogger(ui.log))
	if err != nil {
		dialog.ShowError(err, ui.window)

		return
	}
	ctx, err := ui.begin("Reconstructing…")
	if err != nil {
		dialog.ShowError(err, ui.window)

		return
	}
	ui.mesh = ""

	total := float64(len(pipe.Commands()))
	completed := 0
	watched := ui.watch(pipe.Subscribe(), func(event model.Event) {
		switch event.Type {
		case model.StageCompletedEvent:
			completed++
			ui.progress.SetValue(float64(completed) / total)
		case model.InfoEvent:
			ui.status.SetText(event.Message)
		}
	})

	run := pipe.Start(ctx)
	go func() {
		err := run.Wait()
		<-watched

		fyne.Do(func() {
			switch {
			case errors.Is(err, pipeline.ErrCancelled):
				ui.end("Reconstruction cancelled")
			case err != nil:
				dialog.ShowError(err, ui.window)
				ui.end("Reconstruction failed")
			default:
				ui.mesh, _ = pipe.Artifact()
				ui.end("Reconstruction completed: " + ui.mesh)
			}
		})
	}()
}

func (ui *reconstructUI) visualize() {
	if ui.mesh == "" {
		dialog.ShowInformation("No mesh", "Run the reconstruction first", ui.window)

		return
	}
	cmd := exec.Command(ui.viewer.Text, ui.mesh) //nolint:gosec // the viewer is chosen by the user
	if err := cmd.Start(); err != nil {
		dialog.ShowError(errors.Wrapf(err, "unable to start %s", ui.viewer.Text), ui.window)

		return
	}
	ui.log.WithFields(logrus.Fields{"viewer": ui.viewer.Text, "mesh": ui.mesh}).Info("viewer started")
	go func() {
		_ = cmd.Wait()
	}()
}
