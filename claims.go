package keycloakauth

import "strings"

// Claims is a decoded token claim set. Values are whatever encoding/json produced:
// strings, numbers, bools, nested map[string]interface{} and []interface{}.
type Claims map[string]interface{}

// Lookup walks nested mappings along path. It reports false as soon as a key is
// missing or an intermediate value is not a mapping.
func (c Claims) Lookup(path ...string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(c)
	for _, key := range path {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String returns the claim at path if it is a string.
func (c Claims) String(path ...string) string {
	v, ok := c.Lookup(path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Strings returns the string members of the sequence at path. A space separated
// string is split, which is how the scope claim is encoded.
func (c Claims) Strings(path ...string) []string {
	v, ok := c.Lookup(path...)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return strings.Fields(t)
	case []string:
		return t
	case []interface{}:
		result := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// ExtractRealmRoles returns realm_access.roles as found in the claims. Entries which
// are null or not strings come back as nil, blank entries are kept as they are.
func ExtractRealmRoles(claims Claims) []*string {
	v, ok := claims.Lookup("realm_access", "roles")
	if !ok {
		return []*string{}
	}

	switch roles := v.(type) {
	case []interface{}:
		result := make([]*string, 0, len(roles))
		for _, role := range roles {
			if s, ok := role.(string); ok {
				result = append(result, &s)
				continue
			}
			result = append(result, nil)
		}
		return result
	case []string:
		result := make([]*string, 0, len(roles))
		for i := range roles {
			result = append(result, &roles[i])
		}
		return result
	}
	return []*string{}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Claims:
		return m, true
	}
	return nil, false
}
