package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestCreateAndParseToken(t *testing.T) {
	token, err := CreateToken("user-1", "Admin", "secret")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	claims, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "Admin" {
		t.Fatalf("Unexpected claims %+v", claims)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	good, _ := CreateToken("user-1", "Admin", "secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredStr, _ := expired.SignedString([]byte("secret"))

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "other"},
		{"expired", expiredStr, "secret"},
		{"garbage", "not-a-token", "secret"},
		{"empty secret", good, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); err == nil {
				t.Fatal("Expected an error")
			}
		})
	}
}
