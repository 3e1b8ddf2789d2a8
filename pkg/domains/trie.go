package domains

import (
	"sync"
)

// trieNode is a single character node. Children are created only on insert;
// the lookup path never allocates.
type trieNode struct {
	children map[byte]*trieNode
	isEnd    bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[byte]*trieNode)}
}

// Matcher decides whether a normalized root domain is restricted.
//
// Domains are stored reversed and walked character by character, which turns
// suffix matching into prefix walking: one restricted entry ("example.com")
// covers every subdomain ("mail.example.com") without enumerating them.
//
// The comparison is character-level, not label-level, so a restricted entry
// that is a trailing character sequence of another domain matches even
// without a label boundary ("ample.com" matches "example.com"). This mirrors
// the legacy matcher exactly; see the package tests where the behavior is
// pinned.
type Matcher struct {
	mu   sync.RWMutex
	root *trieNode
	size int
}

// NewMatcher returns an empty matcher. Match on an empty matcher is false
// for every input.
func NewMatcher() *Matcher {
	return &Matcher{root: newTrieNode()}
}

// Load builds a fresh trie from the given set and swaps it in atomically.
// A partially built trie is never observable; callers racing with Load see
// either the previous snapshot or the new one.
func (m *Matcher) Load(domains map[string]struct{}) {
	root := newTrieNode()
	for domain := range domains {
		insert(root, reverse(domain))
	}

	m.mu.Lock()
	m.root = root
	m.size = len(domains)
	m.mu.Unlock()
}

// Match reports whether the domain, or any restricted ancestor of it, is in
// the current snapshot. It returns true as soon as a terminal node is reached
// along the reversed path.
func (m *Matcher) Match(domain string) bool {
	m.mu.RLock()
	root := m.root
	m.mu.RUnlock()

	node := root
	reversed := reverse(domain)
	for i := 0; i < len(reversed); i++ {
		next, ok := node.children[reversed[i]]
		if !ok {
			return false
		}
		node = next
		if node.isEnd {
			return true
		}
	}
	return node.isEnd
}

// Size returns the number of domains in the current snapshot.
func (m *Matcher) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func insert(root *trieNode, s string) {
	node := root
	for i := 0; i < len(s); i++ {
		next, ok := node.children[s[i]]
		if !ok {
			next = newTrieNode()
			node.children[s[i]] = next
		}
		node = next
	}
	node.isEnd = true
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
