//go:build cgo

package graph

// Open returns the graph backend for this build: an in-memory KuzuDB.
func Open() (Store, error) {
	return NewKuzuStore()
}
