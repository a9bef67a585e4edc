package main

import (
	"flag"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/depinlaunch/web-backend/admin"
	"github.com/depinlaunch/web-backend/auth"
	"github.com/depinlaunch/web-backend/cloud"
	"github.com/depinlaunch/web-backend/config"
	"github.com/depinlaunch/web-backend/credentials"
	"github.com/depinlaunch/web-backend/database"
	"github.com/depinlaunch/web-backend/fleet"
	"github.com/depinlaunch/web-backend/instances"
	"github.com/depinlaunch/web-backend/probe"
	"github.com/depinlaunch/web-backend/reconcile"
	"github.com/depinlaunch/web-backend/routes"
	"github.com/depinlaunch/web-backend/secrets"
)

func main() {
	cfgFile := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	conf, err := config.Load(*cfgFile)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	store, err := database.Open(conf)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	codec, err := secrets.NewCodec(conf.EncryptionKey)
	if err != nil {
		log.Fatalf("Invalid encryption key: %v", err)
	}

	regions := conf.RegionList()
	provider := cloud.NewService(30 * time.Second)
	dialer := probe.NewSSHDialer(conf.SSHUser, time.Duration(conf.SSHTimeoutSeconds)*time.Second)
	prober := probe.New(dialer, time.Duration(conf.InstallTimeoutSeconds)*time.Second)
	reconciler := reconcile.New(store, provider, regions)
	fleetSvc := fleet.New(store, provider, prober, reconciler, codec, regions, conf.Pools)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	allowed := map[string]bool{}
	for _, origin := range conf.OriginList() {
		allowed[origin] = true
	}
	router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	routes.Setup(router, routes.Deps{
		Store:       store,
		Auth:        auth.NewHandlers(store, conf.JWTSecret),
		Credentials: credentials.NewHandlers(store, codec, fleetSvc),
		Instances:   instances.NewHandlers(store, fleetSvc, prober, codec),
		Admin:       admin.NewHandlers(store),
	})

	log.Printf("Listening on %s (regions: %v)", conf.ListenAddr, regions)
	if err := router.Run(conf.ListenAddr); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
