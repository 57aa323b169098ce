package cmd

import (
	"github.com/wagateway/pkg/config"
	"github.com/wagateway/pkg/database"
	"github.com/wagateway/pkg/server"
	"github.com/wagateway/pkg/utils"
)

func StartApp() {
	config := config.InitConfig()
	utils.LoadEnv()
	database.InitDB(config.Database)
	server.LaunchHttpServer(config)
}
