// Package guard decides whether a view may render for the current
// authentication state.
package guard

import "errors"

// View names a screen of the client.
type View string

const (
	// ViewHome is the authenticated landing view (the chat screen).
	ViewHome View = "chat"
	// ViewSignIn is the sign-in view.
	ViewSignIn View = "login"
)

// ErrSignInRequired is returned when a protected view is requested while
// signed out.
var ErrSignInRequired = errors.New("sign in required")

// Decision is the outcome of a policy. When Render is false, Redirect names
// the view to show instead.
type Decision struct {
	Render   bool
	Redirect View
}

// Public guards views meant only for signed-out users (sign in, sign up).
func Public(isAuthenticated bool) Decision {
	if isAuthenticated {
		return Decision{Redirect: ViewHome}
	}
	return Decision{Render: true}
}

// Protected guards views that require a signed-in user.
func Protected(isAuthenticated bool) Decision {
	if !isAuthenticated {
		return Decision{Redirect: ViewSignIn}
	}
	return Decision{Render: true}
}
