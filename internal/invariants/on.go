//go:build invariants || race

package invariants

// Enabled is true when the binary was built with the invariants or race tag.
// Structural B-tree assertions are only evaluated when it is set.
const Enabled = true
