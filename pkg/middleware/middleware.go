package middleware

import (
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/wagateway/pkg/entities"
	"github.com/wagateway/pkg/state"
	"gorm.io/gorm"
)

func ClaimIp() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(state.CurrentUserIP, c.ClientIP())
		c.Next()
	}
}

// Authenticate resolves the calling organization from one of three
// credentials, checked in order: X-Client-Token, X-Instance-Token, then
// a Bearer JWT issued to an operator. The first one that resolves wins;
// a request carrying none of them is rejected.
func Authenticate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.GetHeader("X-Client-Token"); token != "" {
			orgID, ok := orgByClientToken(db, token)
			if !ok {
				c.JSON(401, gin.H{"error": "Invalid client token"})
				c.Abort()
				return
			}
			c.Set(state.CurrentOrgId, orgID)
			c.Set(state.AuthKind, state.AuthKindClient)
			c.Next()
			return
		}

		if token := c.GetHeader("X-Instance-Token"); token != "" {
			orgID, ok := orgByInstanceToken(db, token)
			if !ok {
				c.JSON(401, gin.H{"error": "Invalid instance token"})
				c.Abort()
				return
			}
			c.Set(state.CurrentOrgId, orgID)
			c.Set(state.AuthKind, state.AuthKindInstance)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(401, gin.H{"error": "Token is required"})
			c.Abort()
			return
		}

		authToken := strings.Split(authHeader, " ")
		if len(authToken) != 2 || authToken[0] != "Bearer" {
			c.JSON(400, gin.H{"error": "Invalid/Malformed auth token"})
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(authToken[1], claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(os.Getenv("SECRET")), nil
		})

		if err != nil {
			c.JSON(401, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		if !token.Valid {
			c.JSON(401, gin.H{"error": "Token is not valid"})
			c.Abort()
			return
		}

		if exp, ok := claims["exp"].(float64); !ok || float64(time.Now().Unix()) > exp {
			c.JSON(401, gin.H{"error": "Token expired"})
			c.Abort()
			return
		}

		userID, ok := claims["id"].(float64)
		if !ok {
			c.JSON(401, gin.H{"error": "Token is not valid"})
			c.Abort()
			return
		}

		var user entities.User
		if err := db.First(&user, uint(userID)).Error; err != nil {
			c.JSON(401, gin.H{"error": "Unknown user"})
			c.Abort()
			return
		}

		c.Set(state.CurrentOrgId, user.OrganizationID)
		c.Set(state.AuthKind, state.AuthKindUser)
		c.Next()
	}
}

func orgByClientToken(db *gorm.DB, token string) (uint, bool) {
	var integration entities.Integration
	if err := db.Where("client_token = ?", token).First(&integration).Error; err == nil {
		return integration.OrganizationID, true
	}

	var instance entities.Instance
	if err := db.Where("client_token = ?", token).First(&instance).Error; err == nil {
		return instance.OrganizationID, true
	}
	return 0, false
}

func orgByInstanceToken(db *gorm.DB, token string) (uint, bool) {
	var instance entities.Instance
	if err := db.Where("instance_token = ?", token).First(&instance).Error; err == nil {
		return instance.OrganizationID, true
	}

	var integration entities.Integration
	if err := db.Where("instance_token = ?", token).First(&integration).Error; err == nil {
		return integration.OrganizationID, true
	}
	return 0, false
}
