// Package dag builds the part dependency graph of a project manifest. An edge
// from a dependency to its dependent means the dependency must be staged
// before the dependent may build. The graph is validated to be acyclic before
// any step executes.
package dag
