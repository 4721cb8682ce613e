// Package types defines the shared data model for the Larder engine: typed
// values and their ordering, the query sum type, table schemas, the storage
// backend interface, and the standard errors every front-end translates from.
package types
