package main

import (
	stdLog "log"
	"os"

	"github.com/joho/godotenv"

	"github.com/enchantedlib/lending-service/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLog.Fatal("load envs from .env ", err)
	}
	cfg := config.NewConfig()

	if err := newRootCmd(cfg).Execute(); err != nil {
		stdLog.Fatal(err)
	}
}
