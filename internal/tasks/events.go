package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/zester/internal/models"
)

// Phase identifies which collection or download run produced an [Event].
type Phase int

const (
	PhaseLikes Phase = iota
	PhasePlaylists
	PhaseTrackAudio
	PhasePlaylistAudio
)

func (p Phase) String() string {
	switch p {
	case PhaseLikes:
		return "likes"
	case PhasePlaylists:
		return "playlists"
	case PhaseTrackAudio:
		return "tracks_audio"
	case PhasePlaylistAudio:
		return "playlists_audio"
	default:
		return ""
	}
}

// Kind is the step an [Event] describes.
type Kind int

const (
	// Progress reports Count more items appended to a collection.
	Progress Kind = iota
	// BatchSize reports Count tracks about to be downloaded in one run.
	BatchSize
	// RetryPause reports a wait of Delay after a transient server error.
	RetryPause
	ItemStart
	ItemDone
	// ItemError reports a skipped item; Err holds the reason.
	ItemError
	// GroupStart and GroupDone bracket the tracks of one playlist.
	GroupStart
	GroupDone
)

func (k Kind) String() string {
	switch k {
	case Progress:
		return "progress"
	case BatchSize:
		return "batch_size"
	case RetryPause:
		return "retry_pause"
	case ItemStart:
		return "item_start"
	case ItemDone:
		return "item_done"
	case ItemError:
		return "item_error"
	case GroupStart:
		return "group_start"
	case GroupDone:
		return "group_done"
	default:
		return ""
	}
}

// Stage distinguishes where a hydration failed.
type Stage int

const (
	StageNone Stage = iota
	// StageFetch means the full record could not be fetched.
	StageFetch
	// StageComplete means the record was fetched but its tracks could not be completed.
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageComplete:
		return "complete"
	default:
		return ""
	}
}

// Event is one observable step of a fetch, hydration or download run.
//
// Subjects are set according to Kind and Phase: Summary for hydration items, Track for download items,
// Playlist for groups and for tracks downloaded inside a playlist.
type Event struct {
	Kind  Kind
	Phase Phase

	// Count is the item count for Progress and BatchSize, and bytes written for a finished download.
	Count   int
	Delay   time.Duration
	Attempt int

	Track    *models.Track
	Playlist *models.Playlist
	Summary  *models.PlaylistSummary

	Stage Stage
	Err   error
}

// Name returns the event's variant name, e.g. "StartTrackDownload".
func (e Event) Name() string {
	switch e.Kind {
	case Progress:
		return "MoreItemsDownloaded"
	case RetryPause:
		return "PausedAfterServerError"
	case BatchSize:
		return "NumTracksToDownload"
	case GroupStart:
		return "StartPlaylistDownload"
	case GroupDone:
		return "FinishPlaylistDownload"
	}

	if e.Phase == PhasePlaylists {
		switch e.Kind {
		case ItemStart:
			return "StartItemFetch"
		case ItemDone:
			return "FinishItemFetch"
		case ItemError:
			return "ItemFetchError"
		}
	}

	switch e.Kind {
	case ItemStart:
		return "StartTrackDownload"
	case ItemDone:
		return "FinishTrackDownload"
	case ItemError:
		return "TrackDownloadError"
	default:
		return "Unknown"
	}
}

// Subject renders whatever the event is about, for display.
func (e Event) Subject() string {
	switch {
	case e.Track != nil:
		return e.Track.String()
	case e.Summary != nil:
		return e.Summary.Title
	case e.Playlist != nil:
		return e.Playlist.Title
	default:
		return ""
	}
}

func (e Event) String() string {
	s := fmt.Sprintf("%s[%s]", e.Name(), e.Phase)
	switch e.Kind {
	case Progress, BatchSize:
		return fmt.Sprintf("%s %d", s, e.Count)
	case RetryPause:
		return fmt.Sprintf("%s %s", s, e.Delay)
	case ItemError:
		return fmt.Sprintf("%s %s: %v", s, e.Subject(), e.Err)
	default:
		return fmt.Sprintf("%s %s", s, e.Subject())
	}
}

// EventHandler observes events. Handle is called synchronously from the run and must not block;
// it has no influence on control flow.
type EventHandler interface {
	Handle(Event)
}

// HandlerFunc adapts a function to [EventHandler].
type HandlerFunc func(Event)

func (f HandlerFunc) Handle(e Event) { f(e) }

// ChannelHandler forwards events to a channel without blocking.
// Events are dropped when the channel is full, so size the buffer for the consumer.
type ChannelHandler chan<- Event

func (c ChannelHandler) Handle(e Event) {
	select {
	case c <- e:
	default:
	}
}

type multiHandler []EventHandler

func (m multiHandler) Handle(e Event) {
	for _, h := range m {
		h.Handle(e)
	}
}

// Multi fans an event out to every non-nil handler in order.
func Multi(handlers ...EventHandler) EventHandler {
	var hs multiHandler
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return hs
}

type nopHandler struct{}

func (nopHandler) Handle(Event) {}

func orNop(h EventHandler) EventHandler {
	if h == nil {
		return nopHandler{}
	}
	return h
}
