// Package ui renders archive runs: a bubbletea progress view for interactive use and a log handler for everything else.
//
// The progress [Model] follows bubbletea's Init/Update/View pattern in two views:
//  1. [RunningView] : spinner, current item, progress bar and counts while the job runs
//  2. [ResultView] : outcome and a scrollable list of skipped items
//
// The job runs in its own goroutine and reports through a tasks.ChannelHandler; the model drains the channel
// one message at a time via the Msg union type. Quitting cancels the job's context.
//
// [LogHandler] maps the same events onto charmbracelet/log levels: progress at info, retry pauses and
// skipped items at warn, item starts at debug.
package ui
