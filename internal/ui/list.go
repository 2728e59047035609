package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/zester/internal/tasks"
)

var (
	_ list.Item = failureItem{}
)

// failureItem wraps an [tasks.ItemError] event to implement [list.Item].
type failureItem struct {
	event tasks.Event
}

func (i failureItem) FilterValue() string { return i.event.Subject() }
func (i failureItem) Title() string       { return i.event.Subject() }
func (i failureItem) Description() string {
	desc := fmt.Sprint(i.event.Err)
	if i.event.Stage != tasks.StageNone {
		desc = fmt.Sprintf("%s • %s", i.event.Stage, desc)
	}
	if i.event.Playlist != nil && i.event.Track != nil {
		desc = fmt.Sprintf("%s • %s", i.event.Playlist.Title, desc)
	}
	return desc
}
