// Package storage persists downloaded images under the output directory.
//
// Targets are relative "folder/file" names. Resolve rejects anything that
// would land outside the output directory. Writes go to a temporary file
// in the destination folder and are renamed into place, so an interrupted
// run never leaves a truncated image behind. Exists backs the pool's
// skip-existing check and always returns false in overwrite mode.
package storage
