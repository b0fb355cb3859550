// Package mail sends email messages.
//
// Callers depend on the Mail interface and Message payload. The SMTP driver
// delivers through a relay; the log driver only records that a message would
// have been sent, which suits local development and tests.
package mail
