/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

package main

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/runzeroinc/ecmaster"
	"github.com/runzeroinc/ecmaster/devnet"
	"github.com/runzeroinc/ecmaster/ecif"
	"github.com/runzeroinc/ecmaster/engine"
	"github.com/runzeroinc/ecmaster/metrics"
	"github.com/runzeroinc/ecmaster/network"
	"github.com/runzeroinc/ecmaster/units/alstate"
	"github.com/runzeroinc/ecmaster/units/netinit"
)

const recvTimeout = 5 * time.Millisecond

func main() {
	iface := os.Getenv("ECMASTER_IFACE")
	if iface == "" {
		iface = "eth0"
	}

	hostname, err := os.Hostname()
	if err != nil {
		logrus.Fatalf("hostname: %v", err)
	}

	dev, err := devnet.OpenLinuxDevice(iface, devnet.HasQdiscBypass())
	if err != nil {
		logrus.Fatalf("open device %s: %v", iface, err)
	}
	defer dev.Close()

	runID := xid.New().String()
	log := logrus.WithFields(logrus.Fields{"run_id": runID, "iface": iface})

	ifc := ecif.New(dev, devnet.NewWallClockTimer(), log)

	collector := metrics.NewEngineCollector(prometheus.Labels{
		"app":      "ecmasterd",
		"hostname": hostname,
		"iface":    iface,
	})
	prometheus.MustRegister(collector)
	ifc.SetMetricsSink(collector)

	eng := engine.New(ifc)
	eng.SetMetricsSink(collector)

	tbl := network.NewTable()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		logrus.Fatal(http.ListenAndServe(":9109", nil))
	}()

	discovery := netinit.New()
	discovery.Start()
	if _, ok := eng.AddUnit(discovery); !ok {
		logrus.Fatal("could not register network initializer: engine at capacity")
	}

	start := time.Now()
	for {
		sysTime := ecmaster.FromTime(time.Now())
		if err := eng.Poll(tbl, sysTime, recvTimeout); err != nil {
			log.WithError(err).Warn("poll cycle failed")
		}
		if done, count, err := discovery.Wait(); done {
			if err != nil {
				log.WithError(err).Fatal("network initialization failed")
			}
			log.WithField("slave_count", count).Info("network initialization complete")
			break
		}
		if time.Since(start) > 30*time.Second {
			log.Fatal("network initialization timed out")
		}
	}

	for i := 0; i < tbl.Len(); i++ {
		slave := tbl.Get(i)
		transfer := alstate.New()
		transfer.Start(alstate.Target{Single: true, StationAddress: slave.StationAddress}, network.AlStatePreOperational)
		if _, ok := eng.AddUnit(transfer); !ok {
			log.Warn("engine at capacity, skipping remaining AL-state transfers this cycle")
			break
		}
	}

	for {
		sysTime := ecmaster.FromTime(time.Now())
		if err := eng.Poll(tbl, sysTime, recvTimeout); err != nil {
			log.WithError(err).Warn("poll cycle failed")
		}
		time.Sleep(time.Millisecond)
	}
}
