package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/zester/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgEvent MsgKind = iota
	MsgRunComplete
)

// eventMsg is the constructor for [MsgEvent]
func eventMsg(e tasks.Event) Msg {
	return Msg{kind: MsgEvent, data: e}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(err error) Msg {
	return Msg{kind: MsgRunComplete, data: err}
}

func (m Msg) event() tasks.Event {
	e, _ := m.data.(tasks.Event)
	return e
}

func (m Msg) err() error {
	err, _ := m.data.(error)
	return err
}
