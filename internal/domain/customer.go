package domain

// Customer represents the requesting party of a booking. Profile management
// lives elsewhere; dispatch only reads customers to hydrate display fields.
type Customer struct {
	ID    string
	Name  string
	Phone string
}
