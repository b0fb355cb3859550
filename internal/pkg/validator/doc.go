// Package validator validates request and dependency structs.
//
// The go-playground/validator v10 implementation adds two rules:
// `password` (8 to 72 characters, the bcrypt input limit) and `username`
// (3 to 64 characters of letters, digits, dot, dash or underscore). Failed
// fields are reported in snake_case with English messages.
package validator
