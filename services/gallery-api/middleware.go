package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	gallery "github.com/bitmark-inc/picture-gallery"
	"github.com/bitmark-inc/picture-gallery/traceutils"
)

const userContextKey = "user"

// authenticate resolves the bearer token into the request user. Requests
// without a token continue as anonymous.
func (s *GalleryServer) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}

	tokenStrings := strings.Split(header, " ")
	if len(tokenStrings) != 2 || tokenStrings[0] != "Bearer" {
		abortWithError(c, http.StatusForbidden, "invalid authorization format", nil)
		return
	}

	claims, err := parseToken(tokenStrings[1], s.jwtSecret)
	if err != nil {
		abortWithError(c, http.StatusForbidden, "error invalid token", err)
		return
	}

	user, err := claims.User()
	if err != nil {
		abortWithError(c, http.StatusForbidden, "error invalid requester", err)
		return
	}

	c.Set(userContextKey, user)
	traceutils.SetUser(c, claims.Subject)
	c.Next()
}

// requireUser rejects anonymous requests.
func requireUser(c *gin.Context) {
	if currentUser(c).ID == 0 {
		abortWithError(c, http.StatusUnauthorized, "login required", nil)
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) gallery.User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(gallery.User); ok {
			return user
		}
	}
	return gallery.User{}
}
