// Package clock provides a tiny time abstraction.
//
// Production code should depend on the Clocker interface instead of calling
// time.Now() directly. OTP issuance and expiry are decided from the clock, so
// tests swap in a FixedClocker and move it across the session TTL.
package clock
