// Command generate-token mints an HS256 access token and prints bridge
// token variables for a local run against a dev API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	userID := "test-user-123"
	email := "test@example.com"
	role := 1

	if len(os.Args) > 1 {
		userID = os.Args[1]
	}
	if len(os.Args) > 2 {
		email = os.Args[2]
	}

	expires := time.Now().Add(time.Hour)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"iat":   time.Now().Unix(),
		"exp":   expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("CDEX_BRIDGE_ACCESS_TOKEN=%s\n", tokenString)
	fmt.Printf("CDEX_BRIDGE_REFRESH_TOKEN=dev-refresh-%s\n", uuid.New().String())
	fmt.Println()
	fmt.Printf("# user %s <%s>, role %d, expires %s\n", userID, email, role, expires.Format(time.RFC3339))
}
