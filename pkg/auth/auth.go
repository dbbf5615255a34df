package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/database"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var jwtAlgorithm = jwt.SigningMethodHS256

const (
	passwordCost = 12
	tokenTTL     = 24 * time.Hour
)

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// read at call time so a .env loaded in main is honoured
func jwtSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

func deviceSecret() []byte {
	return []byte(os.Getenv("API_MASTER_SECRET"))
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for an office user
func CreateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(jwtSecret())
}

// VerifyToken verifies a JWT token
func VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Login checks a username and password against master_users and returns a token
func Login(db *gorm.DB, username, password string) (string, error) {
	var user database.MasterUser
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return "", errors.New("invalid credentials")
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return "", errors.New("invalid credentials")
	}
	return CreateToken(user.Username)
}

// EnsureAdminExists checks if any admin exists, if not create one from environment variables.
func EnsureAdminExists(db *gorm.DB) error {
	var count int64
	if err := db.Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	user := database.MasterUser{
		Username:     username,
		PasswordHash: hash,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	log.Printf("Default admin user created: %s", username)
	return nil
}

func sign(subject string) string {
	h := hmac.New(sha256.New, deviceSecret())
	h.Write([]byte(subject))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateDeviceKey creates the key a field device uses to act as an employee
func GenerateDeviceKey(employeeID uuid.UUID) string {
	subject := employeeID.String()
	return subject + "." + sign(subject)
}

// VerifyDeviceKey validates a device key and returns the employee it belongs to
func VerifyDeviceKey(key string) (uuid.UUID, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return uuid.Nil, errors.New("invalid key format")
	}

	subject, providedSignature := parts[0], parts[1]
	if !hmac.Equal([]byte(providedSignature), []byte(sign(subject))) {
		return uuid.Nil, errors.New("invalid signature")
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, errors.New("invalid key subject")
	}
	return id, nil
}
