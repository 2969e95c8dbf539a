// Package tasks runs long library jobs with real-time progress reporting.
//
// # Bulk export
//
// [BulkExporter.Export] writes many stored playlists in one pass:
//
//   - Playlists are loaded by id at a bounded rate
//   - A fixed pool of workers renders each one through [formatter.Exporter]
//   - Partial failures are recorded per playlist and never abort the run
//   - An export_manifest.json summarizing every result is written last
//
// # Progress Reporting
//
// Jobs accept an optional channel of [ProgressUpdate] values carrying the phase, step counters and a display message.
// Sends use select with default so a slow reader never blocks the job.
package tasks
