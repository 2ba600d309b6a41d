// Package mediatypes defines the file classification tables shared by the
// annotation task runner and the trash manager.
package mediatypes
