// Package integration runs booking sync end to end against fake booking
// platform and Telegram servers: a sync run over the API, the resulting
// snapshot, and notification dispatch through the configured storage.
package integration
