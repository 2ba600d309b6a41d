// Package handlers contains the HTTP handlers for the dataset manager API:
// model config CRUD, annotation task control, trash operations, and label
// file reads. Handlers translate store and manager errors into HTTP status
// codes and leave the actual work to the internal packages.
package handlers
