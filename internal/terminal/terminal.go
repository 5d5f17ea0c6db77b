package terminal

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/config"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/domain"
	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/encoder"
)

type formFields struct {
	device  *tview.InputField
	host    *tview.InputField
	port    *tview.InputField
	mount   *tview.InputField
	user    *tview.InputField
	pass    *tview.InputField
	bitrate *tview.DropDown
}

// UI is responsible for managing the terminal user interface.
type UI struct {
	commandC           chan Command
	buildInfo          domain.BuildInfo
	configFilePath     string
	clipboardAvailable bool
	logger             *slog.Logger

	// tview state

	app            *tview.Application
	screen         tcell.Screen
	screenCaptureC chan<- ScreenCapture
	pages          *tview.Pages
	form           *tview.Form
	fields         formFields
	statusView     *tview.TextView
	urlView        *tview.TextView

	// mutable state, only accessed from the tview goroutine

	devices       []string // as last received
	device        string   // as last received
	settingDevice bool     // true while the device text is set programmatically
	streaming     bool
}

// Screen represents a terminal screen. This includes its desired dimensions,
// which is required to initialize the tcell.SimulationScreen.
type Screen struct {
	Screen        tcell.Screen
	Width, Height int
	CaptureC      chan<- ScreenCapture
}

// ScreenCapture represents a screen capture, which is used for integration
// testing with the tcell.SimulationScreen.
type ScreenCapture struct {
	Cells         []tcell.SimCell
	Width, Height int
}

// StartParams contains the parameters for starting a new terminal user
// interface.
type StartParams struct {
	ChanSize           int
	Logger             *slog.Logger
	ClipboardAvailable bool
	Config             config.Config // initial form values
	ConfigFilePath     string
	BuildInfo          domain.BuildInfo
	Screen             *Screen // Screen may be nil.
}

const defaultChanSize = 64

// Labels of the form items.
const (
	labelDevice  = "Audio device"
	labelHost    = "Host"
	labelPort    = "Port"
	labelMount   = "Mount"
	labelUser    = "Username"
	labelPass    = "Password"
	labelBitrate = "Bitrate"
)

// Indexes of the form buttons.
const (
	buttonStart = iota
	buttonStop
	buttonSave
	buttonRefresh
	buttonCopyURL
)

const (
	inputLen          = 40
	devicePlaceholder = "Type or choose a device name"
)

// StartUI starts the terminal user interface.
func StartUI(ctx context.Context, params StartParams) (*UI, error) {
	chanSize := cmp.Or(params.ChanSize, defaultChanSize)
	commandC := make(chan Command, chanSize)

	app := tview.NewApplication()

	var screen tcell.Screen
	var screenCaptureC chan<- ScreenCapture
	if params.Screen != nil {
		screen = params.Screen.Screen
		screenCaptureC = params.Screen.CaptureC
		// Allow the tcell screen to be overridden for integration tests. If
		// params.Screen is nil, the real terminal is used.
		app.SetScreen(screen)
		// SetSize must be called after SetScreen:
		screen.SetSize(params.Screen.Width, params.Screen.Height)
	}

	cfg := params.Config
	fields := formFields{
		device: tview.NewInputField().
			SetLabel(labelDevice).
			SetText(cfg.Device).
			SetPlaceholder(devicePlaceholder).
			SetFieldWidth(inputLen),
		host:  tview.NewInputField().SetLabel(labelHost).SetText(cfg.Host).SetFieldWidth(inputLen),
		port:  tview.NewInputField().SetLabel(labelPort).SetText(cfg.Port).SetFieldWidth(inputLen),
		mount: tview.NewInputField().SetLabel(labelMount).SetText(cfg.Mount).SetFieldWidth(inputLen),
		user:  tview.NewInputField().SetLabel(labelUser).SetText(cfg.User).SetFieldWidth(inputLen),
		pass: tview.NewInputField().
			SetLabel(labelPass).
			SetText(cfg.Pass).
			SetMaskCharacter('*').
			SetFieldWidth(inputLen),
		bitrate: tview.NewDropDown().
			SetLabel(labelBitrate).
			SetOptions(config.Bitrates, nil).
			SetCurrentOption(bitrateIndex(cfg.Bitrate)),
	}

	statusView := tview.NewTextView().SetDynamicColors(true).SetText("[white]" + statusIdle)
	urlView := tview.NewTextView().SetDynamicColors(true).SetText("[white]" + dash)

	statusPanel := tview.NewFlex()
	statusPanel.SetDirection(tview.FlexRow)
	statusPanel.SetBorder(true)
	statusPanel.SetTitle("Status")
	statusPanel.AddItem(statusView, 1, 0, false)
	statusPanel.AddItem(urlView, 1, 0, false)

	helpView := tview.NewTextView().
		SetTextColor(tcell.ColorGrey).
		SetText("[Tab] Next field  [F1] About  [Ctrl-C] Quit")

	form := tview.NewForm()
	form.SetFieldBackgroundColor(tcell.ColorDarkSlateGrey)
	form.SetBorder(true)
	form.SetTitle(domain.AppName)
	form.SetTitleAlign(tview.AlignLeft)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(statusPanel, 4, 0, false).
		AddItem(helpView, 1, 0, false)

	pages := tview.NewPages()
	pages.AddPage(pageNameMain, flex, true, true)

	ui := &UI{
		commandC:           commandC,
		buildInfo:          params.BuildInfo,
		configFilePath:     params.ConfigFilePath,
		clipboardAvailable: params.ClipboardAvailable,
		logger:             params.Logger,
		app:                app,
		screen:             screen,
		screenCaptureC:     screenCaptureC,
		pages:              pages,
		form:               form,
		fields:             fields,
		statusView:         statusView,
		urlView:            urlView,
	}

	// The device list is offered as suggestions, but any name may be typed
	// in case enumeration fails to find the device.
	fields.device.
		SetAutocompleteFunc(func(text string) []string {
			if ui.settingDevice {
				return nil
			}
			return matchDevices(ui.devices, text)
		}).
		SetAutocompletedFunc(func(text string, _, source int) bool {
			if source == tview.AutocompletedNavigate {
				return false
			}
			ui.setDeviceText(text)
			return true
		})

	form.
		AddFormItem(fields.device).
		AddFormItem(fields.host).
		AddFormItem(fields.port).
		AddFormItem(fields.mount).
		AddFormItem(fields.user).
		AddFormItem(fields.pass).
		AddFormItem(fields.bitrate).
		AddButton("Start", func() { ui.commandC <- CommandStartStream{Config: ui.formConfig()} }).
		AddButton("Stop", func() { ui.commandC <- CommandStopStream{} }).
		AddButton("Save", func() { ui.commandC <- CommandSaveConfig{Config: ui.formConfig()} }).
		AddButton("Refresh devices", func() { ui.commandC <- CommandRefreshDevices{} }).
		AddButton("Copy URL", func() { ui.copyListenURLToClipboard() })
	ui.updateButtons()

	app.SetRoot(pages, true)
	app.SetFocus(form)
	app.EnableMouse(false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			ui.confirmQuit()
			return nil
		case tcell.KeyF1:
			ui.showAbout()
			return nil
		}

		return event
	})

	if ui.screenCaptureC != nil {
		app.SetAfterDrawFunc(ui.captureScreen)
	}

	go ui.run(ctx)

	return ui, nil
}

// C returns a channel that receives commands from the user interface.
func (ui *UI) C() <-chan Command {
	return ui.commandC
}

func (ui *UI) run(ctx context.Context) {
	defer close(ui.commandC)

	uiDone := make(chan struct{})
	go func() {
		defer func() {
			uiDone <- struct{}{}
		}()

		if err := ui.app.Run(); err != nil {
			ui.logger.Error("tui application error", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-uiDone:
			return
		}
	}
}

// captureScreen captures the screen and sends it to the screenCaptureC
// channel, which must have been set in StartParams.
//
// This is required for integration testing because GetContents() must be
// called inside the tview goroutine to avoid data races.
func (ui *UI) captureScreen(screen tcell.Screen) {
	simScreen, ok := screen.(tcell.SimulationScreen)
	if !ok {
		ui.logger.Error("simulation screen not available")
		return
	}

	// The hook runs before tview shows the frame, and GetContents only
	// reflects what has been shown.
	simScreen.Show()

	cells, w, h := simScreen.GetContents()
	ui.screenCaptureC <- ScreenCapture{
		Cells:  slices.Clone(cells),
		Width:  w,
		Height: h,
	}
}

// SetState sets the state of the terminal user interface.
func (ui *UI) SetState(state domain.AppState) {
	// The state is mutable so can't be passed into QueueUpdateDraw, which
	// passes it to another goroutine, without cloning it first.
	stateClone := state.Clone()
	ui.app.QueueUpdateDraw(func() { ui.redrawFromState(stateClone) })
}

// page names represent a specific page in the terminal user interface.
//
// Modals should generally have a unique name, which allows them to be stacked
// on top of other modals.
const (
	pageNameMain               = "main"
	pageNameModalAbout         = "modal-about"
	pageNameModalQuit          = "modal-quit"
	pageNameModalError         = "modal-error"
	pageNameModalInfo          = "modal-info"
	pageNameModalStreamStopped = "modal-stream-stopped"
	pageNameModalClipboard     = "modal-clipboard"
)

// ShowErrorModal shows an error to the user.
func (ui *UI) ShowErrorModal(text string) {
	ui.app.QueueUpdateDraw(func() {
		ui.showModal(pageNameModalError, text, []string{"Ok"}, nil)
	})
}

// ShowInfoModal shows an informational message to the user.
func (ui *UI) ShowInfoModal(text string) {
	ui.app.QueueUpdateDraw(func() {
		ui.showModal(pageNameModalInfo, text, []string{"Ok"}, nil)
	})
}

// ShowStreamStoppedModal tells the user that the stream stopped without
// being asked to. Closing the modal sends
// [CommandAcknowledgeStreamStopped].
func (ui *UI) ShowStreamStoppedModal(reason string) {
	ui.app.QueueUpdateDraw(func() {
		ui.showModal(
			pageNameModalStreamStopped,
			"The stream stopped unexpectedly:\n\n"+cmp.Or(reason, "unknown reason"),
			[]string{"Ok"},
			func(int, string) {
				ui.commandC <- CommandAcknowledgeStreamStopped{}
			},
		)
	})
}

func (ui *UI) showModal(pageName string, text string, buttons []string, doneFunc func(int, string)) {
	if ui.pages.HasPage(pageName) {
		return
	}

	modal := tview.NewModal()
	modal.SetText(text).
		AddButtons(buttons).
		SetBackgroundColor(tcell.ColorBlack).
		SetTextColor(tcell.ColorWhite).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			ui.pages.RemovePage(pageName)

			if name, _ := ui.pages.GetFrontPage(); name == pageNameMain {
				ui.app.SetFocus(ui.form)
				ui.moveFocusFromDisabledButton()
			}

			if doneFunc != nil {
				doneFunc(buttonIndex, buttonLabel)
			}
		}).
		SetBorderStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))

	ui.pages.AddPage(pageName, modal, true, true)
}

const dash = "—"

const (
	statusIdle      = "Idle"
	statusStreaming = "Streaming..."
	statusStopped   = "Stream stopped"
)

func (ui *UI) redrawFromState(state domain.AppState) {
	// Only reset the device field when the app changes the devices, so that
	// the user's text survives periodic redraws.
	if !slices.Equal(ui.devices, state.Devices) || ui.device != state.Device {
		ui.setDevices(state.Devices, state.Device)
	}

	switch state.Stream.Status {
	case domain.StreamStatusStreaming:
		var durStr string
		if !state.Stream.StartedAt.IsZero() {
			durStr = fmt.Sprintf(" (%s)", time.Since(state.Stream.StartedAt).Round(time.Second))
		}
		ui.statusView.SetText("[black:green]" + statusStreaming + durStr)
	case domain.StreamStatusStoppedUnexpectedly:
		ui.statusView.SetText("[white:red]" + statusStopped)
	default:
		ui.statusView.SetText("[white]" + statusIdle)
	}

	if state.Stream.Active() {
		ui.urlView.SetText("[white]" + state.Stream.URL)
	} else {
		ui.urlView.SetText("[white]" + dash)
	}

	ui.streaming = state.Stream.Active()
	ui.updateButtons()
}

// setDevices replaces the suggested devices. The device text is replaced
// only if a device is selected, so that a typed name is kept when nothing
// was found.
func (ui *UI) setDevices(devices []string, selected string) {
	ui.devices = slices.Clone(devices)
	ui.device = selected

	if selected != "" {
		ui.setDeviceText(selected)
	}
}

func (ui *UI) setDeviceText(text string) {
	ui.settingDevice = true
	defer func() { ui.settingDevice = false }()

	ui.fields.device.SetText(text)
}

func (ui *UI) selectedDevice() string {
	return strings.TrimSpace(ui.fields.device.GetText())
}

// updateButtons enables the start and stop buttons according to the stream
// state.
func (ui *UI) updateButtons() {
	ui.form.GetButton(buttonStart).SetDisabled(ui.streaming)
	ui.form.GetButton(buttonStop).SetDisabled(!ui.streaming)
	ui.moveFocusFromDisabledButton()
}

// moveFocusFromDisabledButton moves the focus between the start and stop
// buttons if the focused one is disabled. A disabled button drops every key,
// including Tab.
func (ui *UI) moveFocusFromDisabledButton() {
	_, focused := ui.form.GetFocusedItemIndex()
	if focused < 0 || !ui.form.GetButton(focused).IsDisabled() {
		return
	}

	next := buttonStop
	if focused == buttonStop {
		next = buttonStart
	}

	ui.form.SetFocus(ui.form.GetFormItemCount() + next)
	ui.app.SetFocus(ui.form)
}

func (ui *UI) formConfig() config.Config {
	_, bitrate := ui.fields.bitrate.GetCurrentOption()

	return config.Config{
		Host:    ui.fields.host.GetText(),
		Port:    ui.fields.port.GetText(),
		Mount:   ui.fields.mount.GetText(),
		User:    ui.fields.user.GetText(),
		Pass:    ui.fields.pass.GetText(),
		Device:  ui.selectedDevice(),
		Bitrate: bitrate,
	}
}

// Close closes the terminal user interface.
func (ui *UI) Close() {
	ui.app.QueueUpdate(func() {
		ui.app.Stop()
	})
}

func (ui *UI) copyListenURLToClipboard() {
	cfg := ui.formConfig()
	url := encoder.Destination{Host: cfg.Host, Port: cfg.Port, Mount: cfg.Mount}.ListenURL()

	var text string
	if ui.clipboardAvailable {
		if err := clipboard.WriteAll(url); err != nil {
			ui.logger.Warn("Failed to write to clipboard", "err", err)
			text = "Copy to clipboard failed:\n\n" + url
		} else {
			text = "Listen URL copied to clipboard:\n\n" + url
		}
	} else {
		text = "Copy to clipboard not available:\n\n" + url
	}

	ui.showModal(
		pageNameModalClipboard,
		text,
		[]string{"Ok"},
		nil,
	)
}

func (ui *UI) confirmQuit() {
	text := "Are you sure you want to quit?"
	if ui.streaming {
		text += "\n\nThis will stop the current stream."
	}

	ui.showModal(
		pageNameModalQuit,
		text,
		[]string{"Quit", "Cancel"},
		func(buttonIndex int, _ string) {
			if buttonIndex == 0 {
				ui.commandC <- CommandQuit{}
			}
		},
	)
}

func (ui *UI) showAbout() {
	commit := ui.buildInfo.Commit
	if len(commit) > 8 {
		commit = commit[:8]
	}

	ui.showModal(
		pageNameModalAbout,
		fmt.Sprintf(
			"%s: stream a microphone to Icecast\n\nv%s (%s)\nBuilt on %s (%s).\n\nSettings: %s",
			domain.AppName,
			cmp.Or(ui.buildInfo.Version, "0.0.0-devel"),
			cmp.Or(commit, "unknown SHA"),
			cmp.Or(ui.buildInfo.Date, "unknown date"),
			ui.buildInfo.GoVersion,
			cmp.Or(ui.configFilePath, dash),
		),
		[]string{"Ok"},
		nil,
	)
}

// matchDevices returns the devices whose names contain text, ignoring case.
// Every device matches empty text. Nothing is returned if text is already the
// only match.
func matchDevices(devices []string, text string) []string {
	text = strings.TrimSpace(text)
	needle := strings.ToLower(text)

	var matches []string
	for _, device := range devices {
		if strings.Contains(strings.ToLower(device), needle) {
			matches = append(matches, device)
		}
	}

	if len(matches) == 1 && matches[0] == text {
		return nil
	}

	return matches
}

// bitrateIndex returns the index of bitrate in [config.Bitrates], or the
// index of the default bitrate if it is not offered.
func bitrateIndex(bitrate string) int {
	if i := slices.Index(config.Bitrates, bitrate); i >= 0 {
		return i
	}

	return slices.Index(config.Bitrates, config.DefaultBitrate)
}
