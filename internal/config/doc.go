// Package config defines the format-agnostic project model, along with the
// Loader interface used to produce it from a manifest on disk.
//
// The `config.Model` is the single source of truth for the `dag`,
// `scheduler` and `executor` packages. Concrete loaders, such as the HCL one,
// live in separate packages.
package config
