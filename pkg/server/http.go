package server

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/Depado/ginprom"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/wagateway/app/api/routes"
	"github.com/wagateway/pkg/config"
	"github.com/wagateway/pkg/database"
	"github.com/wagateway/pkg/domains/actions"
	"github.com/wagateway/pkg/domains/backends"
	"github.com/wagateway/pkg/domains/credentials"
	"github.com/wagateway/pkg/domains/instances"
	"github.com/wagateway/pkg/domains/messaging"
	"github.com/wagateway/pkg/domains/session"
	"github.com/wagateway/pkg/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func LaunchHttpServer(configs *config.Config) {
	log.Println("Starting HTTP Server...")
	gin.SetMode(gin.DebugMode)

	app := gin.New()
	app.Use(gin.LoggerWithFormatter(func(log gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] - %s \"%s %s %s %d %s\"\n",
			log.TimeStamp.Format("2006-01-02 15:04:05"),
			log.ClientIP,
			log.Method,
			log.Path,
			log.Request.Proto,
			log.StatusCode,
			log.Latency,
		)
	}))
	app.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	app.Use(gin.Recovery())
	app.Use(otelgin.Middleware(configs.App.Name))
	app.Use(middleware.ClaimIp())
	app.Use(cors.New(cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Client-Token", "X-Instance-Token", "X-Requested-With", "Origin", "Accept"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	p := ginprom.New(
		ginprom.Engine(app),
		ginprom.Subsystem("gin"),
		ginprom.Path("/metrics"),
		ginprom.Ignore("/swagger/*any"),
	)
	app.Use(p.Instrument())

	db := database.DBClient()

	credentials_repo := credentials.NewRepo(db)
	credentials_service := credentials.NewService(credentials_repo, configs.Gateway.Internal)

	instances_repo := instances.NewRepo(db)
	instances_service := instances.NewService(instances_repo, credentials_service, configs.Gateway.FallbackClientToken)

	resolver := backends.NewResolver(instances_service, credentials_service, configs.Gateway)
	webhooks := session.NewWebhookConfigurator(configs.Gateway.PublicBaseURL)

	session_service := session.NewService(resolver, instances_service, webhooks)

	messaging_repo := messaging.NewRepo(db)
	messaging_service := messaging.NewService(messaging_repo, resolver, configs.Gateway.StrictNumbers)

	actions_service := actions.NewService(session_service, messaging_service, instances_service, resolver, webhooks)

	api := app.Group("/api/v1")
	routes.ActionsRoutes(api, actions_service, db)
	routes.InboundRoutes(api, messaging_service)

	fmt.Println("Server is running on port " + configs.App.Port)
	if err := app.Run(net.JoinHostPort(configs.App.Host, configs.App.Port)); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
