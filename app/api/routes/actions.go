package routes

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"github.com/wagateway/pkg/constant"
	"github.com/wagateway/pkg/domains/actions"
	"github.com/wagateway/pkg/domains/messaging"
	"github.com/wagateway/pkg/dtos"
	"github.com/wagateway/pkg/middleware"
	"github.com/wagateway/pkg/state"
	"gorm.io/gorm"
)

// ActionsRoutes mounts the single command endpoint. Every operation of
// the gateway goes through one POST carrying an action name and payload.
func ActionsRoutes(r *gin.RouterGroup, s actions.Service, db *gorm.DB) {
	authGroup := r.Group("", middleware.Authenticate(db))
	{
		authGroup.POST("/actions", dispatch(s))
	}
}

// InboundRoutes mounts the provider-facing webhook receiver. Providers
// authenticate themselves implicitly through the query parameters the
// gateway itself registered on them.
func InboundRoutes(r *gin.RouterGroup, s messaging.Service) {
	r.POST("/inbound", inbound(s))
}

func dispatch(s actions.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.ActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		orgID := cast.ToUint(c.MustGet(state.CurrentOrgId))
		if orgID == 0 {
			c.JSON(401, gin.H{"error": "Unknown organization"})
			return
		}

		env, err := s.Dispatch(c.Request.Context(), orgID, req)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, env)
	}
}

func inbound(s messaging.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		orgID := cast.ToUint(c.Query("organization_id"))
		instanceID := c.Query("instance_id")
		if orgID == 0 {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		var evt dtos.InboundEventDTO
		if err := c.ShouldBindJSON(&evt); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		// Status and presence callbacks are acknowledged without being
		// stored; only message events enter the conversation log.
		if evt.Event == "message" || (evt.Event == "" && evt.Body != "") {
			if err := s.RecordInbound(c.Request.Context(), orgID, instanceID, evt); err != nil {
				log.Printf("[warn] inbound message for org %d not recorded: %v", orgID, err)
			}
		}

		c.JSON(200, gin.H{"received": true})
	}
}
