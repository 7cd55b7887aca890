// Package auth guards the admin surface with a static credential and
// short-lived HS256 bearer tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("admin token missing or invalid")
)

const (
	adminSubject = "admin"
	issuer       = "auction-backend"
)

type Options struct {
	Username string
	// Password is compared in constant time; PasswordHash, when set, is a
	// bcrypt hash and takes precedence.
	Password     string
	PasswordHash string
	Secret       string
	TTL          time.Duration
	Now          func() time.Time
}

type Authenticator struct {
	username string
	password string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func New(opts Options) (*Authenticator, error) {
	if opts.Secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if opts.Password == "" && opts.PasswordHash == "" {
		return nil, errors.New("auth: no admin password configured")
	}
	if opts.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(opts.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth: admin password hash: %w", err)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	return &Authenticator{
		username: opts.Username,
		password: opts.Password,
		hash:     []byte(opts.PasswordHash),
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		now:      opts.Now,
	}, nil
}

// Login checks the credential and issues a token valid for the configured TTL.
func (a *Authenticator) Login(username, password string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) != 1 {
		return "", ErrInvalidCredentials
	}
	if len(a.hash) > 0 {
		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
			return "", ErrInvalidCredentials
		}
	} else if subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) != 1 {
		return "", ErrInvalidCredentials
	}
	return a.Issue()
}

func (a *Authenticator) Issue() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify accepts a raw token or an "Authorization: Bearer" header value.
func (a *Authenticator) Verify(raw string) error {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return ErrUnauthorized
	}
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithTimeFunc(a.now),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(adminSubject),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

// Middleware rejects requests without a valid admin bearer token. onReject
// writes the response so callers keep one error body format.
func (a *Authenticator) Middleware(onReject func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := a.Verify(r.Header.Get("Authorization")); err != nil {
				onReject(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
