package auth

import (
	"errors"
	"testing"
)

func TestValidateSignup(t *testing.T) {
	valid := SignupForm{Name: "Ada", Email: "ada@example.com", Password: "secret1", ConfirmPassword: "secret1"}

	tests := []struct {
		name    string
		mutate  func(f *SignupForm)
		wantMsg string
	}{
		{"valid", func(f *SignupForm) {}, ""},
		{"missing name", func(f *SignupForm) { f.Name = "  " }, "Please fill in all fields"},
		{"missing confirm", func(f *SignupForm) { f.ConfirmPassword = "" }, "Please fill in all fields"},
		{"bad email", func(f *SignupForm) { f.Email = "ada.example.com" }, "Please enter a valid email address"},
		{"email without tld", func(f *SignupForm) { f.Email = "ada@example" }, "Please enter a valid email address"},
		{"short password", func(f *SignupForm) { f.Password, f.ConfirmPassword = "abc", "abc" }, "Password must be at least 6 characters"},
		{"exactly six", func(f *SignupForm) { f.Password, f.ConfirmPassword = "abcdef", "abcdef" }, ""},
		{"mismatch", func(f *SignupForm) { f.ConfirmPassword = "secret2" }, "Passwords do not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := ValidateSignup(f)

			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("ValidateSignup() = %v, want nil", err)
				}
				return
			}
			var fe *FormError
			if !errors.As(err, &fe) {
				t.Fatalf("ValidateSignup() = %v, want *FormError", err)
			}
			if fe.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", fe.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidateLogin(t *testing.T) {
	if err := ValidateLogin(LoginForm{Email: "ada@example.com", Password: "x"}); err != nil {
		t.Errorf("ValidateLogin(valid) = %v", err)
	}
	if err := ValidateLogin(LoginForm{Email: "", Password: "x"}); err == nil {
		t.Error("ValidateLogin(missing email) = nil, want error")
	}
	if err := ValidateLogin(LoginForm{Email: "ada@example.com"}); err == nil {
		t.Error("ValidateLogin(missing password) = nil, want error")
	}
}
