// package audio plays decoded streams through the system speaker.
//
// An [Output] fetches a whole track into memory, sniffs its container and decodes it with
// beep. MP3, WAV, FLAC and Ogg Vorbis decode natively. WebM, MP4 and Opus, the containers
// video mirrors serve, go through a [Transcoder] such as [FFmpeg] into WAV first. Anything
// else is refused with [ErrUnsupportedFormat] before the current track is touched.
package audio
