// Command smpbot sends the weekly SMP report to a Telegram chat and serves
// a liveness endpoint for the hosting platform.
package main

import (
	"log"
	"os"
	_ "time/tzdata"

	"github.com/m3rciful/smpbot/core/cmd"
)

func main() {
	if err := cmd.Run(cmd.Options{}); err != nil {
		log.Printf("smpbot: %v", err)
		os.Exit(1)
	}
}
