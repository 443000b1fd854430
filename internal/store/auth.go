package store

import (
	"fmt"
	"net/http"
)

// Authenticator decorates an outgoing webhook request with credentials. It
// is a closed capability selected by a short tag, the same shape as the
// store registry.
type Authenticator interface {
	Apply(req *http.Request)
}

// NewAuthenticator builds an authenticator from its tag and options:
//
//	"none":   no credentials (the default)
//	"bearer": Authorization: Bearer <token>; needs "token"
//	"basic":  HTTP basic auth; needs "username" and "password"
//	"header": one static header; needs "header" and "value"
func NewAuthenticator(tag string, opts Options) (Authenticator, error) {
	switch tag {
	case "", "none":
		return noAuth{}, nil
	case "bearer":
		token, ok := opts.String("token")
		if !ok || token == "" {
			return nil, fmt.Errorf("store: bearer auth needs a token")
		}
		return bearerAuth{token: token}, nil
	case "basic":
		user, uok := opts.String("username")
		pass, pok := opts.String("password")
		if !uok || !pok {
			return nil, fmt.Errorf("store: basic auth needs username and password")
		}
		return basicAuth{user: user, pass: pass}, nil
	case "header":
		name, nok := opts.String("header")
		value, vok := opts.String("value")
		if !nok || !vok {
			return nil, fmt.Errorf("store: header auth needs header and value")
		}
		return headerAuth{name: name, value: value}, nil
	}
	return nil, fmt.Errorf("store: unknown auth type %q", tag)
}

type noAuth struct{}

func (noAuth) Apply(*http.Request) {}

type bearerAuth struct{ token string }

func (a bearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.token)
}

type basicAuth struct{ user, pass string }

func (a basicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(a.user, a.pass)
}

type headerAuth struct{ name, value string }

func (a headerAuth) Apply(req *http.Request) {
	req.Header.Set(a.name, a.value)
}
