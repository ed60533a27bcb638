// Package reload keeps validation rules current without restarting.
//
// A Snapshot bundles the manifest, compiled schema and sealed engine of one
// generation. Holder publishes the active snapshot through an atomic
// pointer, so registries stay immutable and in-flight validations finish
// against the snapshot they started with. Watcher rebuilds on file changes
// (fsnotify) or a cron schedule and swaps the result in.
package reload
