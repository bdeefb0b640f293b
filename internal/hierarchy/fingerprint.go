package hierarchy

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// Fingerprint hashes the shape of a tree: kinds, instance names, type
// references and resolved module names, in order. Structurally identical
// trees share a fingerprint no matter which registry built them.
func Fingerprint(n *Node) uint64 {
	h := xxh3.New()
	n.Walk(func(node *Node, depth int) bool {
		typeName, _ := node.TypeName()
		_, _ = h.Write([]byte(strconv.Itoa(depth)))
		_, _ = h.Write([]byte{0, byte(node.Kind), 0})
		_, _ = h.Write([]byte(node.Name))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(node.Ref))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(typeName))
		_, _ = h.Write([]byte{'\n'})
		return true
	})
	return h.Sum64()
}
