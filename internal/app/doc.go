// Package app contains the core application logic. It wires the manifest
// loader, plugin registry, scheduler and executor of a single project into
// the App type and exposes the lifecycle, clean and pack operations,
// decoupled from any specific entrypoint like a CLI.
package app
