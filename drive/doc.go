// Package drive adapts the Google Drive v3 API as a remote backup store.
//
// All objects live in the application-private appDataFolder and are addressed
// by a bearer token obtained lazily through an OAuth consent flow. The
// adapter exposes exactly the three operations the backup orchestrator
// consumes - list, download, create - and never retries on its own.
package drive
