// Package customErrors holds the error classes shared by every gallery component.
package customErrors

import (
	"strings"

	"github.com/zeebo/errs"
)

var (
	// Validation is malformed, oversized or disallowed input.
	Validation = errs.Class("validation")
	// NotFound is a referenced asset or space that does not exist.
	NotFound = errs.Class("not found")
	// Permission is a caller lacking ownership or admin rights.
	Permission = errs.Class("permission denied")
	// QuotaExceeded is an admission that would breach a space maximum.
	QuotaExceeded = errs.Class("quota exceeded")
	// Conflict is a duplicated space or an identical review status.
	Conflict = errs.Class("conflict")
	// System is a storage, network or object store failure.
	System = errs.Class("system")
)

var classes = []*errs.Class{&Validation, &NotFound, &Permission, &QuotaExceeded, &Conflict, &System}

// IsClassified reports whether err already carries one of the gallery classes.
func IsClassified(err error) bool {
	for _, c := range classes {
		if c.Has(err) {
			return true
		}
	}
	return false
}

// Message returns the message of err without the class prefix, suitable for
// returning to a client.
func Message(err error) string {
	msg := err.Error()
	for _, c := range classes {
		if c.Has(err) {
			return strings.TrimPrefix(msg, string(*c)+": ")
		}
	}
	return msg
}
