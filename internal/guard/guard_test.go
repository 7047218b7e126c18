package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy func(bool) Decision
		authed bool
		want   Decision
	}{
		{"public signed out", Public, false, Decision{Render: true}},
		{"public signed in", Public, true, Decision{Redirect: ViewHome}},
		{"protected signed out", Protected, false, Decision{Redirect: ViewSignIn}},
		{"protected signed in", Protected, true, Decision{Render: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy(tt.authed))
		})
	}
}
