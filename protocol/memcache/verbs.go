package memcache

import "github.com/memtap/memcap/profile"

// verbInfo records how a recognized verb token maps onto the event
// model: which command variant it belongs to, and whether its command
// line is followed by a value block (spec.md §4.3).
type verbInfo struct {
	variant      profile.Variant
	expectsValue bool
}

// verbTable is keyed by lowercased verb text. Synonyms collapse onto the
// same Variant: get/gets/mg are all Get, set/add/replace/ms are all Set,
// and so on. The synonyms are not distinguished further because the
// profile's Event carries only the variant, never the original verb.
var verbTable = map[string]verbInfo{
	"get":  {profile.Get, false},
	"gets": {profile.Get, false},
	"mg":   {profile.Get, false},

	"set":     {profile.Set, true},
	"add":     {profile.Set, true},
	"replace": {profile.Set, true},
	"ms":      {profile.Set, true},

	"delete": {profile.Delete, false},
	"md":     {profile.Delete, false},

	"version": {profile.Noop, false},
	"noop":    {profile.Noop, false},
	"mn":      {profile.Noop, false},
}

// metaSetVerbs is the subset of verbTable whose "bytes" token (for Set) sits
// at a different field index than the classic text protocol.
var metaSetVerbs = map[string]bool{
	"ms": true,
}

func lookupVerb(tok []byte) (verbInfo, bool) {
	info, ok := verbTable[lowerASCII(tok)]
	return info, ok
}

// lowerASCII returns a lowercased copy of a short ASCII token. Verb
// tokens are at most a handful of bytes, so the allocation here is
// negligible relative to the parser's deliberate avoidance of copying
// key bytes.
func lowerASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
