package main

import (
	"context"

	"github.com/mechatbot/mechatbot/cmd/mechatbot/cmd"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd.Execute(ctx)
}
