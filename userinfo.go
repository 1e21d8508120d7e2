package keycloakauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

const errorCodeInvalidUserInfoResponse = "invalid_user_info_response"

// OAuth2Error is an error response of the identity provider as described in
// RFC 6749 section 5.2 and RFC 6750 section 3.
type OAuth2Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

func (e *OAuth2Error) Error() string {
	msg := fmt.Sprintf("[%s]", e.Code)
	if e.Description != "" {
		msg += " " + e.Description
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	return msg
}

var bearerParam = regexp.MustCompile(`(\w+)="([^"]*)"`)

// oauth2ErrorFromResponse reads the error from the WWW-Authenticate header when it
// carries a bearer error, otherwise from a JSON body.
func oauth2ErrorFromResponse(res *http.Response) *OAuth2Error {
	oauthErr := &OAuth2Error{StatusCode: res.StatusCode}

	if header := res.Header.Get("WWW-Authenticate"); strings.HasPrefix(strings.ToLower(header), "bearer") {
		for _, match := range bearerParam.FindAllStringSubmatch(header, -1) {
			switch match[1] {
			case "error":
				oauthErr.Code = match[2]
			case "error_description":
				oauthErr.Description = match[2]
			case "error_uri":
				oauthErr.URI = match[2]
			}
		}
	}

	if oauthErr.Code == "" {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		_ = json.Unmarshal(body, oauthErr)
		oauthErr.StatusCode = res.StatusCode
		if oauthErr.Code == "" {
			oauthErr.Code = errorCodeInvalidUserInfoResponse
			if oauthErr.Description == "" {
				oauthErr.Description = strings.TrimSpace(string(body))
			}
		}
	}
	return oauthErr
}

// UserInfoClient fetches the user-info claims of an access token.
type UserInfoClient struct {
	endpoint string
	client   *http.Client
}

// NewUserInfoClient creates a client whose requests all present host as Host
// header. An empty host leaves requests untouched.
func NewUserInfoClient(endpoint, host string, transport http.RoundTripper) *UserInfoClient {
	if host != "" {
		transport = NewHostRewriter(host, transport)
	}
	return &UserInfoClient{
		endpoint: endpoint,
		client:   &http.Client{Transport: transport},
	}
}

func (c *UserInfoClient) Fetch(ctx context.Context, accessToken string) (Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, &OAuth2Error{
			Code:        errorCodeInvalidUserInfoResponse,
			Description: fmt.Sprintf("could not reach user-info endpoint (%s)", err),
		}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, oauth2ErrorFromResponse(res)
	}

	claims := Claims{}
	if err := json.NewDecoder(res.Body).Decode(&claims); err != nil {
		return nil, &OAuth2Error{
			StatusCode:  res.StatusCode,
			Code:        errorCodeInvalidUserInfoResponse,
			Description: fmt.Sprintf("could not decode user-info response (%s)", err),
		}
	}
	return claims, nil
}
