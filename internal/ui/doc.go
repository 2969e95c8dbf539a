// Package ui implements the interactive terminal player using bubbletea's Elm architecture.
//
// The TUI has two panes over a persistent now-playing footer:
//  1. [SearchView] : a query input over the merged search results
//  2. [QueueView] : the session's queue, current entry marked
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving messages via the [Msg] union type.
// Playback runs in a [player.Session] outside the program; its events are forwarded with [EventMsg] and a
// once-per-second tick refreshes the progress bar.
//
// Keyboard bindings are shown through charmbracelet/bubbles/help; press ? for the full list.
package ui
