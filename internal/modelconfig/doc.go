// Package modelconfig defines named detection-backend configurations and
// their validation rules. Persistence is provided by the database package,
// which implements [Store].
package modelconfig
