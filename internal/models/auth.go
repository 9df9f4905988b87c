package models

import "github.com/golang-jwt/jwt/v5"

// UserRole mirrors the CRM's role claim.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
)

// JWTClaims represents the JWT payload issued by the CRM's auth service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
