// Package authenticator declares the middleware contract the router
// expects from the auth layer.
package authenticator

import "net/http"

type Authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
}
