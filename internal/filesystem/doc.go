// Package filesystem provides the move primitive used by the trash manager.
//
// Moves prefer an atomic os.Rename and fall back to copy-then-remove when
// the source and destination live on different filesystems (EXDEV). Copies
// fsync the destination before the source is removed so that a crash in
// the middle never loses data: at worst both copies exist.
//
// Transient errors seen on network filesystems (ESTALE, EBUSY) are retried
// with exponential backoff; all other errors fail immediately.
package filesystem
