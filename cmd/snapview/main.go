// Command snapview is a desktop viewer for baselines and the artifacts of
// failed comparisons.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"snapvis/pkg/config"
	"snapvis/pkg/runner"
	"snapvis/pkg/snapshot"
)

func main() {
	configPath := flag.String("config", os.Getenv("SNAPVIS_CONFIG"), "path to YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapview: %v\n", err)
		os.Exit(1)
	}
	env, err := runner.NewEnv(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapview: %v\n", err)
		os.Exit(1)
	}
	defer env.Close()

	a := app.New()
	w := a.NewWindow("snapview")
	w.Resize(fyne.NewSize(1200, 800))

	v := newViewer(env)
	w.SetContent(v.layout())
	w.ShowAndRun()
}

type viewer struct {
	env    *runner.Env
	names  []snapshot.Name
	sel    snapshot.Name
	list   *widget.List
	status *widget.Label
	tabs   *container.AppTabs
	imgs   map[string]*canvas.Image
	accept *widget.Button
}

func newViewer(env *runner.Env) *viewer {
	v := &viewer{
		env:    env,
		status: widget.NewLabel("Select a snapshot"),
		imgs:   make(map[string]*canvas.Image),
	}
	v.reload()

	v.list = widget.NewList(
		func() int { return len(v.names) },
		func() fyne.CanvasObject { return widget.NewLabel("snapshot") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			n := v.names[i]
			label := string(n)
			if snapshot.Has(env.Artifacts.DiffPath(n)) {
				label += "  ✗"
			}
			o.(*widget.Label).SetText(label)
		},
	)
	v.list.OnSelected = func(i widget.ListItemID) { v.show(v.names[i]) }

	var items []*container.TabItem
	for _, kind := range []string{"baseline", "actual", "diff"} {
		img := canvas.NewImageFromImage(nil)
		img.FillMode = canvas.ImageFillContain
		v.imgs[kind] = img
		items = append(items, container.NewTabItem(kind, img))
	}
	v.tabs = container.NewAppTabs(items...)

	v.accept = widget.NewButton("Approve", v.approve)
	v.accept.Disable()
	return v
}

func (v *viewer) layout() fyne.CanvasObject {
	bottom := container.NewBorder(nil, nil, nil, v.accept, v.status)
	split := container.NewHSplit(v.list, container.NewBorder(nil, bottom, nil, nil, v.tabs))
	split.Offset = 0.25
	return split
}

func (v *viewer) reload() {
	names, err := v.env.Dir.List()
	if err != nil {
		v.status.SetText("Error: " + err.Error())
		return
	}
	v.names = names
}

// paths returns the file behind each tab for name.
func (v *viewer) paths(name snapshot.Name) map[string]string {
	return map[string]string{
		"baseline": v.env.Dir.Path(name),
		"actual":   v.env.Artifacts.ActualPath(name),
		"diff":     v.env.Artifacts.DiffPath(name),
	}
}

func (v *viewer) show(name snapshot.Name) {
	v.sel = name
	for kind, p := range v.paths(name) {
		img := v.imgs[kind]
		if snapshot.Has(p) {
			img.File = p
		} else {
			img.File = ""
		}
		img.Image = nil
		img.Refresh()
	}

	hasDiff := snapshot.Has(v.env.Artifacts.DiffPath(name))
	if hasDiff {
		v.accept.Enable()
		v.tabs.SelectIndex(2)
		v.status.SetText(string(name) + ": differs from baseline")
	} else {
		v.accept.Disable()
		v.tabs.SelectIndex(0)
		v.status.SetText(string(name))
	}
}

func (v *viewer) approve() {
	if v.sel == "" {
		return
	}
	verdict, err := v.env.Comparator.Approve(v.sel)
	if err != nil {
		v.status.SetText("Approve failed: " + err.Error())
		return
	}
	v.reload()
	v.list.Refresh()
	v.show(v.sel)
	v.status.SetText("Approved " + string(verdict.Name))
}
