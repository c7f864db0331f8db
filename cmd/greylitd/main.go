// greylitd runs the grey-literature processing daemon in the foreground. It
// is the standalone equivalent of `greylit daemon run` for process
// supervisors that want a dedicated binary.
package main

import (
	"context"
	"log"
	"os"

	"greylit/internal/config"
	"greylit/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("GREYLIT_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("greylitd: %v", err)
	}
}
