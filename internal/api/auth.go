package api

import (
	"context"
	"errors"
	"net/http"

	"gv-go/internal/gv"
)

// Auth is the login client.
type Auth struct {
	c *Client
}

var _ gv.AuthAPI = (*Auth)(nil)

// NewAuth creates the login client.
func NewAuth(c *Client) *Auth {
	return &Auth{c: c}
}

type loginEnvelope struct {
	Data *struct {
		Token string  `json:"token"`
		User  gv.User `json:"user"`
	} `json:"data"`
}

// Login exchanges email and password for a token. Wrong credentials are
// reported as Unauthenticated.
func (a *Auth) Login(ctx context.Context, email, password string) (*gv.Credentials, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	_, resp, err := a.c.do(ctx, request{
		method:      http.MethodPost,
		path:        "auth/login",
		body:        body,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	var env loginEnvelope
	if err := decode(resp, &env); err != nil {
		return nil, err
	}
	if env.Data == nil || env.Data.Token == "" {
		return nil, gv.Malformed(errors.New("login response missing token"))
	}
	return &gv.Credentials{Token: env.Data.Token, User: env.Data.User}, nil
}
