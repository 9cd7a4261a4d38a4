package main

import (
	"go.uber.org/fx"

	"github.com/Idan-Levin/slack-shopping-agent/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
