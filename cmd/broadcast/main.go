package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ryandielhenn/glomers/internal/app"
	"github.com/ryandielhenn/glomers/internal/telemetry"
	"github.com/ryandielhenn/glomers/pkg/broadcast"
	"github.com/ryandielhenn/glomers/pkg/node"
	"github.com/ryandielhenn/glomers/pkg/proto"
)

func main() {
	err := app.Run("broadcast", os.Args[1:], os.Stdin, os.Stdout, broadcast.Codec,
		func(info proto.Init) (node.Handler[broadcast.Payload], error) {
			h := broadcast.New(info, zap.L().Named("broadcast"))
			telemetry.TrackAccepted(h.Len)
			return h, nil
		})
	if err != nil {
		fmt.Fprintln(os.Stderr, "broadcast:", err)
		os.Exit(1)
	}
}
