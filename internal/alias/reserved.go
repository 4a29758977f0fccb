package alias

// BaselineReserved is the reserved word set from spec §6 that both the
// Alias Validator and the Code Generator must refuse to emit. Configuration
// may extend it via alias.reserved; it is never shrunk.
var BaselineReserved = []string{
	"admin", "api", "static", "health", "health_check", "login", "register",
	"dashboard", "profile", "logout", "shorten", "redirect", "users", "tags",
	"public", "help", "about", "contact", "terms", "privacy", "favicon.ico",
	"robots.txt", "sitemap.xml", "docs",
}

// ReservedSet is a fast membership test over the baseline set plus any
// operator-configured extensions.
type ReservedSet struct {
	words map[string]struct{}
}

// NewReservedSet builds a ReservedSet from the baseline plus extra words.
func NewReservedSet(extra []string) *ReservedSet {
	words := make(map[string]struct{}, len(BaselineReserved)+len(extra))
	for _, w := range BaselineReserved {
		words[w] = struct{}{}
	}
	for _, w := range extra {
		words[w] = struct{}{}
	}
	return &ReservedSet{words: words}
}

// Contains reports whether s is a reserved word.
func (r *ReservedSet) Contains(s string) bool {
	_, ok := r.words[s]
	return ok
}
