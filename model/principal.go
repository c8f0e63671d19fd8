// file: model/principal.go

package model

// Principal is the acting caller as resolved by the auth middleware. Identity
// management lives outside this service; all the ledger needs is a stable id
// and whether the caller may see accounts it does not own.
type Principal struct {
	ID         int
	Privileged bool
}
