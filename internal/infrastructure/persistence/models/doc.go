// Package models contains GORM persistence models for the membership
// invoicing tables. Domain types in internal/domain/membership carry no ORM
// tags; ToDomain and FromDomain convert at the repository boundary.
//
// The member's draft invoice link is not stored on the member row. It is the
// reverse side of invoices.open_membership_id, which has a partial unique
// index so a member has at most one open invoice.
package models
