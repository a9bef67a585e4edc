// Package middleware gates protected routes: JWT validation plus a session
// liveness check, and an admin gate on top.
package middleware

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/depinlaunch/web-backend/auth"
	"github.com/depinlaunch/web-backend/database"
	"github.com/depinlaunch/web-backend/models"
)

// Auth builds the authentication middleware. A valid token alone is not
// enough: the backing session must still exist and be within its inactivity
// window, so revocation takes effect before the access token expires.
func Auth(store *database.Store, jwtKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing or invalid"})
			c.Abort()
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := auth.ParseAccessToken(jwtKey, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		sess, err := store.SessionByID(claims.SessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
			c.Abort()
			return
		}
		if expired, reason := auth.SessionExpired(sess, time.Now()); expired {
			if err := store.DeleteSession(sess.ID); err != nil {
				log.Printf("Failed to delete expired session %d: %v", sess.ID, err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": reason})
			c.Abort()
			return
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 32)
		if err != nil || uint(userID) != sess.UserID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session does not belong to user"})
			c.Abort()
			return
		}

		if err := store.TouchSession(sess.ID); err != nil {
			log.Printf("Failed to update session activity: %v", err)
		}

		c.Set("user_id", uint(userID))
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// Admin builds the admin gate; it must be chained after Auth.
func Admin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists || role != string(models.RoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID extracts the authenticated user's ID from the request context.
func UserID(c *gin.Context) uint {
	return c.GetUint("user_id")
}
