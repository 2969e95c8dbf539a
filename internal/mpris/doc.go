// package mpris exposes a playback session on the D-Bus session bus as an MPRIS 2 media player,
// so desktop media keys and shell widgets can control it.
//
// See https://specifications.freedesktop.org/mpris-spec/latest/
package mpris
