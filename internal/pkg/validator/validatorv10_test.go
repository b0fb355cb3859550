package validator

import (
	"errors"
	"testing"
)

type registerInput struct {
	Username     string `validate:"required,username"`
	Password     string `validate:"required,password"`
	EmailAddress string `validate:"required,email"`
}

func TestV10Validator(t *testing.T) {
	v, err := NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator() error = %v", err)
	}

	if err := v.Validate(registerInput{Username: "alice", Password: "s3cret-pass", EmailAddress: "alice@example.com"}); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	err = v.Validate(registerInput{Username: "a!", Password: "short", EmailAddress: "nope"})
	var verr V10ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %T, want V10ValidationError", err)
	}

	want := map[string]string{
		"username":      "Username must be 3-64 letters, digits, '.', '-' or '_'",
		"password":      "Password must be 8-72 characters",
		"email_address": "EmailAddress must be a valid email address",
	}
	for field, msg := range want {
		if verr.Values()[field] != msg {
			t.Fatalf("field %s = %q, want %q", field, verr.Values()[field], msg)
		}
	}
}

func TestV10ValidatorRequired(t *testing.T) {
	v, err := NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator() error = %v", err)
	}

	err = v.Validate(registerInput{})
	var verr V10ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %T", err)
	}
	if verr["username"] != "Username is a required field" {
		t.Fatalf("username = %q", verr["username"])
	}
}
