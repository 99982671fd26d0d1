// Package checkpoint keeps a record of previous runs per gallery URL.
//
// A traversal always starts from the top of the gallery, so nothing here
// changes what a run emits. The record lets the CLI report how many of a
// run's images are new and which reason ended the last run.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: $XDG_DATA_HOME/imgscraper/checkpoints/ or ~/.local/share/imgscraper/checkpoints/
//   - macOS: ~/Library/Application Support/imgscraper/checkpoints/
//   - Windows: %APPDATA%/imgscraper/checkpoints/
//
// Files are written atomically through a temporary file and rename.
package checkpoint
