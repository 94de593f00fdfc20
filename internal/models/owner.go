package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OwnerRole represents the roles carried by identity tokens.
type OwnerRole string

const (
	RoleProfessor OwnerRole = "PROFESSOR"
	RoleAdmin     OwnerRole = "ADMIN"
)

// Owner is the faculty identity documents and counters are scoped to.
type Owner struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	Name       string    `db:"name" json:"name"`
	Department string    `db:"department" json:"department"`
	Role       OwnerRole `db:"role" json:"role"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// IdentityClaims is the payload of the bearer token issued by the external sign-in flow.
type IdentityClaims struct {
	OwnerID    string    `json:"owner_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Role       OwnerRole `json:"role"`
	jwt.RegisteredClaims
}

// Owner projects the claims onto an Owner value.
func (c *IdentityClaims) Owner() Owner {
	role := c.Role
	if role == "" {
		role = RoleProfessor
	}
	return Owner{
		ID:         c.OwnerID,
		Email:      c.Email,
		Name:       c.Name,
		Department: c.Department,
		Role:       role,
	}
}

// StorageCredentials is the owner's archive token bundle. It is passed through
// for the duration of a request and never stored.
type StorageCredentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// FacultySummary is one row of the admin overview.
type FacultySummary struct {
	OwnerID       string  `db:"id" json:"ownerId"`
	Name          string  `db:"name" json:"name"`
	Email         string  `db:"email" json:"email"`
	Department    string  `db:"department" json:"department"`
	DocumentCount int     `db:"document_count" json:"documentCount"`
	OverallRating float64 `db:"-" json:"overallRating"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
