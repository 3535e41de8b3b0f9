// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/flight_sensors/internal/app"
	"github.com/relabs-tech/flight_sensors/internal/config"
)

func main() {
	configPath := flag.String("config", "./flight_sensors.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting flight-sensors web server (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunWeb(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
