// Package startup handles application initialization: configuration loading
// from environment variables, directory validation, and the structured
// startup/shutdown log output.
//
// Configuration is environment-only. The required directories (trash,
// database) are created and write-tested at load time; the dataset
// directory is only warned about, since it may be mounted after startup.
//
// The Log* helpers keep main's startup sequence readable and give every
// phase the same banner-style output.
package startup
