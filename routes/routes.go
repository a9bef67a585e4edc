// Package routes wires the HTTP surface: public auth endpoints, the
// authenticated dashboard API and the admin group.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/depinlaunch/web-backend/admin"
	"github.com/depinlaunch/web-backend/auth"
	"github.com/depinlaunch/web-backend/credentials"
	"github.com/depinlaunch/web-backend/database"
	"github.com/depinlaunch/web-backend/instances"
	"github.com/depinlaunch/web-backend/middleware"
)

// Deps carries the wired handler sets.
type Deps struct {
	Store       *database.Store
	Auth        *auth.Handlers
	Credentials *credentials.Handlers
	Instances   *instances.Handlers
	Admin       *admin.Handlers
}

// Setup configures all the application routes.
func Setup(router *gin.Engine, deps Deps) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", deps.Auth.Register)
		authGroup.POST("/login", deps.Auth.Login)
		authGroup.POST("/refresh", deps.Auth.Refresh)
	}

	protected := router.Group("/")
	protected.Use(middleware.Auth(deps.Store, deps.Auth.JWTKey()))
	{
		protected.GET("/auth-check", deps.Auth.Check)
		protected.GET("/projects", deps.Instances.Projects)

		creds := protected.Group("/credentials")
		{
			creds.GET("", deps.Credentials.List)
			creds.POST("", deps.Credentials.Create)
			creds.PUT("/:id", deps.Credentials.Update)
			creds.DELETE("/:id", deps.Credentials.Delete)
			creds.POST("/import", deps.Credentials.BatchImport)
			creds.POST("/check", deps.Credentials.CheckAll)
		}

		insts := protected.Group("/instances")
		{
			insts.GET("", deps.Instances.List)
			insts.POST("/scan", deps.Instances.Scan)
			insts.POST("/launch", deps.Instances.Launch)
			insts.POST("/install", deps.Instances.Install)
			insts.POST("/terminate", deps.Instances.Terminate)
			insts.POST("/deep-refresh", deps.Instances.DeepRefresh)
			insts.POST("/:id/detect", deps.Instances.Detect)
			insts.POST("/:id/health", deps.Instances.Health)
		}
	}

	adminGroup := router.Group("/admin")
	adminGroup.Use(middleware.Auth(deps.Store, deps.Auth.JWTKey()), middleware.Admin())
	{
		adminGroup.GET("/users", deps.Admin.ListUsers)
		adminGroup.POST("/users/:id/balance", deps.Admin.AdjustBalance)
		adminGroup.POST("/users/:id/role", deps.Admin.UpdateRole)
		adminGroup.GET("/transactions", deps.Admin.Transactions)
		adminGroup.POST("/billing/run", deps.Admin.RunBilling)
	}
}
