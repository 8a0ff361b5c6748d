package node

import "sync/atomic"

// Type is the closed tag set a node's Type field draws from. Values are
// composed at traversal time by the "type promotion" rule
// ("archive-"+parent.Type, "compressed-"+parent.Type, "normal-"+parent.Type).
type Type string

// Base types: the first four are filesystem-resident, the *-contents
// types and directory-entry describe nodes inside a container.
const (
	TypeDirectory        Type = "directory"
	TypeNormalFile       Type = "normal-file"
	TypeArchiveFile      Type = "archive-file"
	TypeCompressedFile   Type = "compressed-file"
	TypeNormalContents   Type = "normal-contents"
	TypeArchiveContents  Type = "archive-contents"
	TypeCompressContents Type = "compressed-contents"
	TypeDirectoryEntry   Type = "directory-entry"
)

// Promoted returns the type obtained by entering a container of kind
// container ("archive" or "compressed") while already carrying Type t,
// type promotion rule.
func Promoted(container string, t Type) Type {
	return Type(container + "-" + string(t))
}

// Node is what a [Visitor] (the expression evaluator, the scanner)
// actually receives: the PropertyMap plus the handful of fields every
// visitor needs without a map lookup.
type Node struct {
	Props *PropertyMap

	Type  Type
	Path  string
	Name  string
	Depth int

	// Prune is the one-shot "skip this subtree" side channel a visitor
	// sets to stop descent. It is non-nil only for directories and
	// archives; other node kinds leave it nil, and setting it has no
	// effect for them.
	Prune *atomic.Bool
}

// SetPrune sets the $PRUNE cell if present. It is a no-op on node kinds
// that do not carry one.
func (n *Node) SetPrune() {
	if n.Prune != nil {
		n.Prune.Store(true)
	}
}

// Pruned reports whether $PRUNE has been set for this node.
func (n *Node) Pruned() bool {
	return n.Prune != nil && n.Prune.Load()
}
