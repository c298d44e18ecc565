package main

import (
	"github.com/storyweft/novelmap/internal/server"
	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/logger"
	"github.com/storyweft/novelmap/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
