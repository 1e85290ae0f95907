// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inboxui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/inbox/lib/applist"
	"github.com/bureau-foundation/inbox/lib/schema"
)

// invokeTimeout bounds each command sent to the hub.
const invokeTimeout = 10 * time.Second

// Commander invokes commands in the hub namespace.
type Commander interface {
	Invoke(ctx context.Context, name string, parameter any) (found bool, err error)
}

// frameMsg delivers one subscribe-stream frame.
type frameMsg struct {
	frame schema.HubFrame
}

// streamEndedMsg reports that the frame channel closed.
type streamEndedMsg struct{}

// invokeResultMsg reports the outcome of a command.
type invokeResultMsg struct {
	command string
	found   bool
	err     error
}

type rowKind int

const (
	rowApplication rowKind = iota
	rowSource
	rowMessage
	rowMessageAction
)

// row is one selectable line of the list.
type row struct {
	kind  rowKind
	appID string

	// command is what Activate invokes; parameter goes with it.
	command   string
	parameter any

	// needsParameter marks message actions that cannot be run from
	// the list.
	needsParameter bool

	label     string
	detail    string
	running   bool
	attention bool
}

// dismissable reports whether Dismiss applies to the row.
func (r row) dismissable() bool { return r.kind == rowSource || r.kind == rowMessage }

// Model is the bubbletea model of the inbox view.
type Model struct {
	frames    <-chan schema.HubFrame
	commander Commander
	keys      KeyMap
	styles    Styles

	mirror Mirror
	rows   []row
	cursor int
	offset int

	width  int
	height int

	status      string
	statusError bool
	streamEnded bool
}

// NewModel creates a model reading frames from frames (closed when
// the stream ends) and sending actions through commander.
func NewModel(frames <-chan schema.HubFrame, commander Commander) Model {
	return Model{
		frames:    frames,
		commander: commander,
		keys:      DefaultKeyMap,
		styles:    NewStyles(DefaultTheme),
	}
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return listenForFrame(model.frames)
}

func listenForFrame(frames <-chan schema.HubFrame) tea.Cmd {
	return func() tea.Msg {
		frame, ok := <-frames
		if !ok {
			return streamEndedMsg{}
		}
		return frameMsg{frame: frame}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.scrollToCursor()

	case frameMsg:
		model.mirror.Apply(message.frame)
		model.rebuildRows()
		return model, listenForFrame(model.frames)

	case streamEndedMsg:
		model.streamEnded = true
		model.setStatus("disconnected from the hub", true)

	case invokeResultMsg:
		switch {
		case message.err != nil:
			model.setStatus(fmt.Sprintf("%s: %v", message.command, message.err), true)
		case !message.found:
			model.setStatus(fmt.Sprintf("%s is gone", message.command), true)
		default:
			model.setStatus("", false)
		}
	}
	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}
	case key.Matches(message, model.keys.Down):
		if model.cursor < len(model.rows)-1 {
			model.cursor++
		}
	case key.Matches(message, model.keys.Home):
		model.cursor = 0
	case key.Matches(message, model.keys.End):
		model.cursor = max(len(model.rows)-1, 0)

	case key.Matches(message, model.keys.Activate):
		selected, ok := model.selected()
		if !ok {
			return model, nil
		}
		if selected.needsParameter {
			model.setStatus(fmt.Sprintf("%s takes a parameter; use bureau-inbox invoke", selected.command), true)
			return model, nil
		}
		return model, model.invoke(selected.command, selected.parameter)

	case key.Matches(message, model.keys.Dismiss):
		selected, ok := model.selected()
		if !ok || !selected.dismissable() {
			return model, nil
		}
		return model, model.invoke(selected.command, false)

	case key.Matches(message, model.keys.DismissAll):
		return model, model.invoke(applist.CommandRemoveAll, nil)
	}
	model.scrollToCursor()
	return model, nil
}

func (model *Model) setStatus(status string, isError bool) {
	model.status = status
	model.statusError = isError
}

func (model Model) selected() (row, bool) {
	if model.cursor < 0 || model.cursor >= len(model.rows) {
		return row{}, false
	}
	return model.rows[model.cursor], true
}

func (model Model) invoke(command string, parameter any) tea.Cmd {
	commander := model.commander
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), invokeTimeout)
		defer cancel()
		found, err := commander.Invoke(ctx, command, parameter)
		return invokeResultMsg{command: command, found: found, err: err}
	}
}

// rebuildRows regenerates the list from the mirror, keeping the
// cursor on the same command when it still exists.
func (model *Model) rebuildRows() {
	var selectedCommand string
	if selected, ok := model.selected(); ok {
		selectedCommand = selected.command
	}

	model.rows = nil
	for _, application := range model.mirror.Applications() {
		model.rows = append(model.rows, applicationRow(application))
		for _, source := range application.Sources {
			model.rows = append(model.rows, sourceRow(application.ID, source))
		}
		for _, message := range application.Messages {
			model.rows = append(model.rows, messageRow(application.ID, message))
			for _, action := range message.Actions {
				model.rows = append(model.rows, actionRow(application.ID, message.ID, action))
			}
		}
	}

	model.cursor = min(model.cursor, max(len(model.rows)-1, 0))
	for index, r := range model.rows {
		if r.command == selectedCommand {
			model.cursor = index
			break
		}
	}
	model.scrollToCursor()
}

func applicationRow(application schema.Application) row {
	label := application.ID
	if application.Descriptor != nil && application.Descriptor.Name != "" {
		label = application.Descriptor.Name
	}
	return row{
		kind:    rowApplication,
		appID:   application.ID,
		command: LaunchCommand(application.ID),
		label:   label,
		running: application.Running,
	}
}

func sourceRow(appID string, source schema.Source) row {
	label := source.Label
	if label == "" {
		label = source.ID
	}
	var detail []string
	if source.Count > 0 {
		detail = append(detail, fmt.Sprintf("%d", source.Count))
	}
	if source.Text != "" {
		detail = append(detail, source.Text)
	}
	if source.Count == 0 && source.Text == "" && source.Time > 0 {
		detail = append(detail, time.Unix(0, source.Time).Format("15:04"))
	}
	return row{
		kind:      rowSource,
		appID:     appID,
		command:   SourceCommand(appID, source.ID),
		parameter: true,
		label:     label,
		detail:    strings.Join(detail, " · "),
		attention: source.DrawsAttention,
	}
}

func messageRow(appID string, message schema.Message) row {
	label := message.Title
	if label == "" {
		label = message.ID
	}
	if message.Subtitle != "" {
		label += ": " + message.Subtitle
	}
	return row{
		kind:      rowMessage,
		appID:     appID,
		command:   MessageCommand(appID, message.ID),
		parameter: true,
		label:     label,
		detail:    strings.Join(strings.Fields(message.Body), " "),
		attention: message.DrawsAttention,
	}
}

func actionRow(appID, messageID string, action schema.ActionSpec) row {
	label := action.Label
	if label == "" {
		label = action.Name
	}
	return row{
		kind:           rowMessageAction,
		appID:          appID,
		command:        MessageActionPrefix(appID, messageID) + action.Name,
		needsParameter: action.ParameterType != "",
		label:          label,
	}
}

// listHeight is the number of list rows that fit between the header
// and the footer.
func (model Model) listHeight() int {
	if model.height <= 0 {
		return len(model.rows)
	}
	return max(model.height-3, 1)
}

func (model *Model) scrollToCursor() {
	height := model.listHeight()
	if model.cursor < model.offset {
		model.offset = model.cursor
	}
	if model.cursor >= model.offset+height {
		model.offset = model.cursor - height + 1
	}
	model.offset = max(min(model.offset, len(model.rows)-height), 0)
}

// View implements tea.Model.
func (model Model) View() string {
	var builder strings.Builder

	builder.WriteString(model.renderHeader())
	builder.WriteString("\n\n")

	switch {
	case len(model.rows) == 0 && !model.mirror.CaughtUp() && !model.streamEnded:
		builder.WriteString(model.styles.Faint.Render("connecting…"))
		builder.WriteString("\n")
	case len(model.rows) == 0:
		builder.WriteString(model.styles.Faint.Render("no applications"))
		builder.WriteString("\n")
	default:
		end := min(model.offset+model.listHeight(), len(model.rows))
		for index := model.offset; index < end; index++ {
			builder.WriteString(model.renderRow(model.rows[index], index == model.cursor))
			builder.WriteString("\n")
		}
	}

	builder.WriteString(model.renderFooter())
	return builder.String()
}

func (model Model) renderHeader() string {
	indicator := model.mirror.Indicator()
	marker := model.styles.Faint.Render("○")
	if indicator.DrawsAttention {
		marker = model.styles.Attention.Render("●")
	}
	title := indicator.Accessible
	if title == "" {
		title = "Messages"
	}
	return marker + " " + model.styles.Header.Render(title)
}

func (model Model) renderRow(r row, selected bool) string {
	var line string
	switch r.kind {
	case rowApplication:
		marker := model.styles.Stopped.Render("○")
		if r.running {
			marker = model.styles.Running.Render("●")
		}
		line = marker + " " + r.label
	case rowSource, rowMessage:
		line = "    " + r.label
		if r.attention {
			line = "  " + model.styles.Attention.Render("!") + " " + r.label
		}
		if r.detail != "" {
			line += "  " + model.styles.Faint.Render(r.detail)
		}
	case rowMessageAction:
		line = "      ↳ " + r.label
		if r.needsParameter {
			line += model.styles.Faint.Render(" …")
		}
	}

	if model.width > 2 {
		line = ansi.Truncate(line, model.width-2, "…")
	}
	if selected {
		return model.styles.Selected.Render("> " + line)
	}
	return "  " + line
}

func (model Model) renderFooter() string {
	if model.status != "" {
		if model.statusError {
			return model.styles.Error.Render(model.status)
		}
		return model.styles.Normal.Render(model.status)
	}
	var parts []string
	for _, binding := range model.keys.helpBindings() {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return model.styles.Help.Render(strings.Join(parts, " · "))
}
