package models

import "strings"

// Identity is the authenticated person checking in.
type Identity struct {
	Name       string `bson:"name" json:"name"`
	Email      string `bson:"email" json:"email"`
	EmployeeID string `bson:"employee_id" json:"employeeId"`
}

// LoginRequest represents a (mock) login or signup request
type LoginRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
}

// Claims represents JWT claims
type Claims struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Exp        int64  `json:"exp"`
}

// Identity converts token claims back into an Identity.
func (c *Claims) Identity() *Identity {
	return &Identity{Name: c.Name, Email: c.Email, EmployeeID: c.EmployeeID}
}

// DisplayName returns the name to show for the identity, falling back to the
// local part of the email address.
func (i *Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if at := strings.Index(i.Email, "@"); at > 0 {
		return i.Email[:at]
	}
	return i.Email
}
