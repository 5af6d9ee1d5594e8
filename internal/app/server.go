// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_mlc/internal/config"
	"github.com/relabs-tech/inertial_mlc/internal/metrics"
	"github.com/relabs-tech/inertial_mlc/internal/sensors"
)

// RunRegisterDebug starts the register debugger on WEB_SERVER_PORT and
// serves until ctx is cancelled.
func RunRegisterDebug(ctx context.Context) error {
	log.Println("starting ISM330DHCX register debug tool")
	cfg := config.Get()

	imuManager := sensors.GetIMUManager()
	if err := imuManager.Init(); err != nil {
		return err
	}
	defer imuManager.Close()

	dbg, err := NewRegisterDebugger(imuManager, metrics.Default, cfg.RegisterDebugAllowedRanges)
	if err != nil {
		return err
	}
	if cfg.RegisterDebugAllowedRanges == "" {
		log.Println("register_debug: REGISTER_DEBUG_ALLOWED_RANGES empty, writes disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           dbg.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("register_debug: listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
