// Package registry maps the plugin identifiers used in manifests (e.g.
// "make") to the compiled Go plugins implementing their pull and build
// procedures.
//
// During application startup every built-in module registers its plugins,
// then the manifest's parts are validated against the registry: unknown
// plugins and options a plugin does not accept are rejected as manifest
// errors before any step runs.
package registry
