package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/ukydev/qr-attendance/internal/models"
)

func TestNewService(t *testing.T) {
	service := NewService("", 0)
	assert.NotNil(t, service)
	assert.Equal(t, []byte(defaultSecret), service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)

	service = NewService("s3cret", time.Hour)
	assert.Equal(t, []byte("s3cret"), service.jwtSecret)
	assert.Equal(t, time.Hour, service.tokenExp)
}

func TestService_HashPassword(t *testing.T) {
	service := NewService("", 0)

	hash, err := service.HashPassword("testpassword123")
	assert.NoError(t, err)
	assert.NotEqual(t, "testpassword123", hash)
	assert.True(t, service.CheckPassword("testpassword123", hash))
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_ValidateToken(t *testing.T) {
	service := NewService("", 0)
	id := &models.Identity{Name: "Test User", Email: "test@example.com", EmployeeID: "EMP12345"}

	token, err := service.GenerateToken(id)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, id, claims.Identity())

	// Bearer prefix accepted
	_, err = service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)

	_, err = service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)

	// signed with another secret
	other, _ := NewService("other-secret", 0).GenerateToken(id)
	_, err = service.ValidateToken(other)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ValidateToken_Expired(t *testing.T) {
	service := NewService("", 0)
	claims := jwt.MapClaims{
		"employee_id": "EMP12345",
		"exp":         time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.jwtSecret)
	assert.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrExpiredToken, err)
}

func TestService_ValidateToken_MissingEmployee(t *testing.T) {
	service := NewService("", 0)
	claims := jwt.MapClaims{"name": "x", "exp": time.Now().Add(time.Hour).Unix()}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.jwtSecret)

	_, err := service.ValidateToken(token)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service := NewService("", 0)

	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"", "", true},
		{"Bearer", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
	}
	for _, tt := range tests {
		got, err := service.ExtractTokenFromHeader(tt.header)
		if tt.wantErr {
			assert.Equal(t, ErrInvalidToken, err, "header %q", tt.header)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestService_ValidateInput(t *testing.T) {
	service := NewService("", 0)

	assert.NoError(t, service.ValidatePassword("password123"))
	assert.Error(t, service.ValidatePassword("short"))
	assert.NoError(t, service.ValidateEmail("test@example.com"))
	assert.Error(t, service.ValidateEmail("invalid-email"))
}
