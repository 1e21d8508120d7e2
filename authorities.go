package keycloakauth

import "strings"

// Authority is a permission identifier used for access decisions.
type Authority string

const (
	ScopePrefix = "SCOPE_"
	RolePrefix  = "ROLE_"

	// AuthorityOidcUser is granted to every principal which logged in through OIDC.
	AuthorityOidcUser Authority = "OIDC_USER"

	RoleAdmin Authority = RolePrefix + "ADMIN"

	// DefaultUserNameAttribute is used when the provider configuration names none.
	DefaultUserNameAttribute = "sub"
)

// AuthoritySet keeps unique authorities in insertion order.
type AuthoritySet struct {
	order []Authority
	index map[Authority]struct{}
}

func NewAuthoritySet(authorities ...Authority) *AuthoritySet {
	s := &AuthoritySet{index: map[Authority]struct{}{}}
	s.Add(authorities...)
	return s
}

func (s *AuthoritySet) Add(authorities ...Authority) {
	if s.index == nil {
		s.index = map[Authority]struct{}{}
	}
	for _, a := range authorities {
		if _, ok := s.index[a]; ok {
			continue
		}
		s.index[a] = struct{}{}
		s.order = append(s.order, a)
	}
}

func (s *AuthoritySet) Contains(a Authority) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[a]
	return ok
}

func (s *AuthoritySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Slice returns a copy of the members in insertion order.
func (s *AuthoritySet) Slice() []Authority {
	if s == nil {
		return []Authority{}
	}
	return append([]Authority{}, s.order...)
}

func (s *AuthoritySet) Strings() []string {
	if s == nil {
		return []string{}
	}
	result := make([]string, 0, len(s.order))
	for _, a := range s.order {
		result = append(result, string(a))
	}
	return result
}

// NormalizeRoles turns raw realm role names into ROLE_ authorities.
// Order matters: nil entries are dropped, names are trimmed, blanks dropped,
// upper-cased and deduplicated (first occurrence wins) before prefixing.
func NormalizeRoles(raw []*string) []Authority {
	seen := map[string]struct{}{}
	result := []Authority{}
	for _, role := range raw {
		if role == nil {
			continue
		}
		name := strings.TrimSpace(*role)
		if name == "" {
			continue
		}
		name = strings.ToUpper(name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, Authority(RolePrefix+name))
	}
	return result
}

// ComputeAuthorities is the union of the identity authority, one SCOPE_ authority
// per access token scope (verbatim) and the normalized realm roles from claims.
func ComputeAuthorities(scopes []string, claims Claims) *AuthoritySet {
	authorities := NewAuthoritySet(AuthorityOidcUser)
	for _, scope := range scopes {
		authorities.Add(Authority(ScopePrefix + scope))
	}
	authorities.Add(NormalizeRoles(ExtractRealmRoles(claims))...)
	return authorities
}
