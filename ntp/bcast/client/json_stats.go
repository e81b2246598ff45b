/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/ntpbcast/notify"
)

const (
	contentType     = "Content-Type"
	applicationJSON = "application/json"
)

// WaitResponse is returned by /wait once time is announced
type WaitResponse struct {
	Status string `json:"status"`
	Wakes  int64  `json:"wakes"`
}

// JSONStats is what we want to report as stats via http
type JSONStats struct {
	*Stats
	sys      SysStats
	waiters  *notify.Waiters
	registry *prometheus.Registry
}

// NewJSONStats returns a new JSONStats
func NewJSONStats(waiters *notify.Waiters) *JSONStats {
	return &JSONStats{
		Stats:    NewStats(),
		waiters:  waiters,
		registry: prometheus.NewRegistry(),
	}
}

// CollectSysStats adds process stats to the counters
func (s *JSONStats) CollectSysStats(interval time.Duration) error {
	sys, err := s.sys.Collect(interval)
	if err != nil {
		return err
	}
	for k, v := range sys {
		s.SetCounter(k, v)
	}
	return nil
}

// Handler returns http handler serving /, /metrics and /wait
func (s *JSONStats) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRootRequest)
	mux.HandleFunc("/wait", s.handleWaitRequest)
	prom := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.updateGauges()
		prom.ServeHTTP(w, r)
	})
	return mux
}

// Start runs http server until ctx is cancelled
func (s *JSONStats) Start(ctx context.Context, monitoringport int, interval time.Duration) error {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.CollectSysStats(interval); err != nil {
					log.Warningf("failed to get system metrics %s", err)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", monitoringport),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	log.Infof("Starting http json server on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitoring server: %w", err)
	}
	return nil
}

func reply(w http.ResponseWriter, v any) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set(contentType, applicationJSON)
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// handleRootRequest replies with all counters
func (s *JSONStats) handleRootRequest(w http.ResponseWriter, _ *http.Request) {
	reply(w, s.GetCounters())
}

// handleWaitRequest blocks until the next announce
func (s *JSONStats) handleWaitRequest(w http.ResponseWriter, r *http.Request) {
	if s.waiters == nil {
		http.Error(w, "waiting is not supported", http.StatusNotImplemented)
		return
	}
	status, wakes, err := s.waiters.Wait(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestTimeout)
		return
	}
	reply(w, &WaitResponse{Status: status, Wakes: wakes})
}

// updateGauges mirrors counters into prometheus registry
func (s *JSONStats) updateGauges() {
	for mkey, mval := range s.GetCounters() {
		promCollector := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: flattenKey(mkey),
			Help: mkey,
		})
		if err := s.registry.Register(promCollector); err != nil {
			are := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, are) {
				promCollector = are.ExistingCollector.(prometheus.Gauge)
			} else {
				log.Errorf("failed to register metric %s %v", mkey, err)
				continue
			}
		}
		promCollector.Set(float64(mval))
	}
}

func flattenKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, "=", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}
