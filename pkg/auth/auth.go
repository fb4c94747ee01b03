package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/planpulse/compass-api/pkg/database"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidKey is returned for a malformed or wrongly signed API key
	ErrInvalidKey = errors.New("invalid api key")
	// ErrInvalidToken is returned for an expired or forged session token
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCredentials is returned when a login does not match
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRevokedKey is returned for a validly signed key an admin has revoked
	ErrRevokedKey = errors.New("api key revoked")
	// ErrMissingSecret is returned when signing is attempted without a secret
	ErrMissingSecret = errors.New("signing secret not configured")
)

var jwtAlgorithm = jwt.SigningMethodHS256

// TokenTTL is how long an admin session lasts
const TokenTTL = 24 * time.Hour

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies API keys and admin sessions
type Authenticator struct {
	JWTSecret    []byte
	MasterSecret []byte
	// BcryptCost defaults to 14
	BcryptCost int
	Now        func() time.Time
}

// New returns an Authenticator for the given secrets
func New(jwtSecret, masterSecret string) *Authenticator {
	return &Authenticator{
		JWTSecret:    []byte(jwtSecret),
		MasterSecret: []byte(masterSecret),
		BcryptCost:   14,
		Now:          time.Now,
	}
}

func (a *Authenticator) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// HashPassword hashes a password using bcrypt
func (a *Authenticator) HashPassword(password string) (string, error) {
	cost := a.BcryptCost
	if cost == 0 {
		cost = 14
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for a user
func (a *Authenticator) CreateToken(username string) (string, error) {
	if len(a.JWTSecret) == 0 {
		return "", ErrMissingSecret
	}
	now := a.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(a.JWTSecret)
}

// VerifyToken verifies a JWT token
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	if len(a.JWTSecret) == 0 {
		return nil, ErrMissingSecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.JWTSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateHMACKey creates a signed API key "<userID>.<hex signature>"
func (a *Authenticator) GenerateHMACKey(userID string) (string, error) {
	if len(a.MasterSecret) == 0 {
		return "", ErrMissingSecret
	}
	if userID == "" || strings.Contains(userID, ".") {
		return "", fmt.Errorf("%w: user id must be non-empty and contain no '.'", ErrInvalidKey)
	}
	return userID + "." + a.sign(userID), nil
}

func (a *Authenticator) sign(userID string) string {
	h := hmac.New(sha256.New, a.MasterSecret)
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMACKey validates an HMAC-signed API key and returns its user id
func (a *Authenticator) VerifyHMACKey(key string) (string, error) {
	if len(a.MasterSecret) == 0 {
		return "", ErrMissingSecret
	}
	parts := strings.Split(key, ".")
	if len(parts) != 2 || parts[0] == "" {
		return "", fmt.Errorf("%w: bad format", ErrInvalidKey)
	}

	userID := parts[0]
	expected := a.sign(userID)

	// constant-time comparison
	if !hmac.Equal([]byte(parts[1]), []byte(expected)) {
		return "", fmt.Errorf("%w: bad signature", ErrInvalidKey)
	}
	return userID, nil
}

// KeyPreview masks a key for listing, e.g. "ali...9f3c"
func KeyPreview(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

// Login checks a username and password against master_users
func (a *Authenticator) Login(db *gorm.DB, username, password string) (string, error) {
	var user database.MasterUser
	res := db.Where("username = ?", username).Limit(1).Find(&user)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", ErrInvalidCredentials
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return a.CreateToken(user.Username)
}

// TouchAPIKey fetches the record for a verified key, creating it on first
// sight, and stamps its last use. Revoked keys stay on record and return
// ErrRevokedKey.
func (a *Authenticator) TouchAPIKey(db *gorm.DB, key, userID string) (*database.APIKey, error) {
	var apiKey database.APIKey
	err := db.Where(database.APIKey{Key: key}).Attrs(database.APIKey{
		Name:       userID,
		KeyPreview: KeyPreview(key),
		RateLimit:  10000,
	}).FirstOrCreate(&apiKey).Error
	if err != nil {
		return nil, err
	}
	if apiKey.RevokedAt != nil {
		return nil, ErrRevokedKey
	}

	now := a.now()
	apiKey.LastUsed = &now
	if err := db.Model(&apiKey).Update("last_used", now).Error; err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// EnsureAdminExists creates the default admin when master_users is empty
func (a *Authenticator) EnsureAdminExists(db *gorm.DB, username, password string, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := a.HashPassword(password)
	if err != nil {
		return err
	}
	if err := db.Create(&database.MasterUser{Username: username, PasswordHash: hash}).Error; err != nil {
		return err
	}
	if logger != nil {
		logger.Info("default admin user created", zap.String("username", username))
	}
	return nil
}
