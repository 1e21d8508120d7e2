package keycloakauth

import (
	"encoding/json"
	"fmt"

	"github.com/dunv/ulog"
)

// Principal is an authenticated user. It is built once per login and not
// modified afterwards.
type Principal struct {
	// raw id token, needed as id_token_hint on logout. Empty for bearer requests.
	IDToken       string
	Claims        Claims
	UserInfo      Claims
	Token         KeycloakToken
	NameAttribute string
	Authorities   *AuthoritySet
}

// newPrincipal is the single place where authorities are resolved, both for
// interactive logins and for bearer requests.
func newPrincipal(scopes []string, claims, userInfo Claims, rawIDToken, nameAttribute string) *Principal {
	if nameAttribute == "" {
		nameAttribute = DefaultUserNameAttribute
	}
	p := &Principal{
		IDToken:       rawIDToken,
		Claims:        claims,
		UserInfo:      userInfo,
		NameAttribute: nameAttribute,
		Authorities:   ComputeAuthorities(scopes, claims),
	}
	// claims of an unexpected shape only leave parts of the typed view empty
	if err := decodeClaims(claims, &p.Token); err != nil {
		ulog.Tracef("principal %s: %s", p.Name(), err)
	}
	return p
}

// Name is the value of the user-name attribute, user-info claims take precedence.
func (p *Principal) Name() string {
	if name := p.UserInfo.String(p.NameAttribute); name != "" {
		return name
	}
	return p.Claims.String(p.NameAttribute)
}

func (p *Principal) HasAuthority(authority Authority) bool {
	return p != nil && p.Authorities.Contains(authority)
}

func decodeClaims(claims Claims, v interface{}) error {
	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("could not encode claims (%w)", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("could not decode claims (%w)", err)
	}
	return nil
}
