package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"

	gallery "github.com/bitmark-inc/picture-gallery"
)

type GalleryJWTClaim struct {
	jwt.StandardClaims
	Role gallery.Role `json:"role"`
}

// User resolves the caller identity carried by the claims.
func (c GalleryJWTClaim) User() (gallery.User, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return gallery.User{}, fmt.Errorf("invalid subject %q", c.Subject)
	}

	role := c.Role
	if role != gallery.RoleAdmin {
		role = gallery.RoleUser
	}
	return gallery.User{ID: id, Role: role}, nil
}

func parseToken(bearerToken string, secret []byte) (GalleryJWTClaim, error) {
	var claims GalleryJWTClaim
	token, err := jwt.ParseWithClaims(bearerToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return GalleryJWTClaim{}, err
	}
	if !token.Valid {
		return GalleryJWTClaim{}, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// signToken issues a token for user. It is used by tests and local tooling.
func signToken(user gallery.User, secret []byte, ttl time.Duration) (string, error) {
	claims := GalleryJWTClaim{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(ttl).Unix(),
		},
		Role: user.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
