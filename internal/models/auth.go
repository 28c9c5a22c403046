package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// NewClinicRequest carries an inline clinic created during doctor signup.
type NewClinicRequest struct {
	Name        string  `json:"name" validate:"required"`
	Address     string  `json:"address" validate:"required"`
	Phone       string  `json:"phone" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Description *string `json:"description,omitempty"`
}

// RegisterRequest creates a user plus its patient or doctor profile.
// Doctors must reference an existing clinic or supply a new one inline.
type RegisterRequest struct {
	Username    string   `json:"username" validate:"required,min=3"`
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=8"`
	Password2   string   `json:"password2" validate:"required,eqfield=Password"`
	FirstName   string   `json:"first_name" validate:"required"`
	LastName    string   `json:"last_name" validate:"required"`
	UserType    UserRole `json:"user_type" validate:"required,oneof=patient doctor"`
	Phone       string   `json:"phone,omitempty"`
	Address     *string  `json:"address,omitempty"`
	DateOfBirth *string  `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender      *string  `json:"gender,omitempty" validate:"omitempty,oneof=M F O"`

	// Doctor-only fields.
	Specialization  string            `json:"specialization,omitempty"`
	LicenseNumber   string            `json:"license_number,omitempty"`
	ClinicID        string            `json:"clinic,omitempty"`
	NewClinic       *NewClinicRequest `json:"new_clinic,omitempty"`
	ExperienceYears int               `json:"experience_years,omitempty"`
	ConsultationFee float64           `json:"consultation_fee,omitempty"`
	Bio             *string           `json:"bio,omitempty"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh" validate:"required"`
}

// TokenPair bundles the issued tokens.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AuthResponse returns the authenticated user and their tokens.
type AuthResponse struct {
	Message  string    `json:"message"`
	User     UserInfo  `json:"user"`
	Tokens   TokenPair `json:"tokens"`
	IssuedAt time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	UserType  UserRole `json:"user_type"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Username string   `json:"username"`
	jwt.RegisteredClaims
}
