package main

import (
	"github.com/wagateway/app/cmd"
)

// @title WhatsApp Gateway API
// @version 1.0
// @description Multi-tenant WhatsApp messaging gateway with a single action endpoint.

// @host  localhost:8000
// @BasePath /api/v1

func main() {
	cmd.StartApp()
}
