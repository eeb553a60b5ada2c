// Package cli is responsible for the command-line surface: the cobra
// command tree, flag and environment binding through viper, rendering of
// plans and reports, and the mapping of errors to process exit codes.
package cli
