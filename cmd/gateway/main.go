package main

import (
	"context"
	"log"
	"os"

	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/app/bootstrap"
)

func main() {
	if err := bootstrap.Run(context.Background(), os.Args[1:]); err != nil {
		log.Printf("compliance gateway: %v", err)
		os.Exit(bootstrap.ExitCode(err))
	}
}
