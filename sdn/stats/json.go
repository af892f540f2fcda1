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

package stats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
)

// JSONStats is what we want to report as stats via http.
// The same snapshot is served as JSON on / and in Prometheus format on /metrics.
type JSONStats struct {
	report   counters
	reportMu sync.Mutex
	prom     *PrometheusExporter

	counters
}

// NewJSONStats returns a new JSONStats
func NewJSONStats() *JSONStats {
	s := &JSONStats{prom: NewPrometheusExporter()}

	s.init()
	s.report.init()

	return s
}

// Handler returns the http handler serving JSON and Prometheus metrics
func (s *JSONStats) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	mux.Handle("/metrics", s.prom.Handler())
	return mux
}

// Start runs http server and initializes maps
func (s *JSONStats) Start(monitoringport int) {
	addr := fmt.Sprintf(":%d", monitoringport)
	log.Infof("Starting http json server on %s", addr)
	err := http.ListenAndServe(addr, s.Handler())
	if err != nil {
		log.Fatalf("Failed to start listener: %v", err)
	}
}

// Snapshot the values so they can be reported atomically
func (s *JSONStats) Snapshot() {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	s.rx.copy(&s.report.rx)
	s.routed.copy(&s.report.routed)
	s.dropped.copy(&s.report.dropped)
	s.unknownHost.copy(&s.report.unknownHost)
	s.report.decodeErrors = atomic.LoadInt64(&s.decodeErrors)
	s.report.packetOut = atomic.LoadInt64(&s.packetOut)
	s.report.flowMod = atomic.LoadInt64(&s.flowMod)
	s.report.directiveErrors = atomic.LoadInt64(&s.directiveErrors)
	s.report.plans = atomic.LoadInt64(&s.plans)
	s.report.planSkipped = atomic.LoadInt64(&s.planSkipped)
	s.report.pathErrors = atomic.LoadInt64(&s.pathErrors)
	s.report.evicted = atomic.LoadInt64(&s.evicted)
	s.report.hosts = atomic.LoadInt64(&s.hosts)
	s.report.unsatisfied = atomic.LoadInt64(&s.unsatisfied)
	s.report.recommendations = atomic.LoadInt64(&s.recommendations)
	s.prom.Update(s.report.toMap())
}

// Report returns the last snapshot
func (s *JSONStats) Report() map[string]int64 {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	return s.report.toMap()
}

// handleRequest is a handler used for all http monitoring requests
func (s *JSONStats) handleRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.Report())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// Reset atomically sets all the counters to 0
func (s *JSONStats) Reset() {
	s.rx.reset()
	s.routed.reset()
	s.dropped.reset()
	s.unknownHost.reset()
	atomic.StoreInt64(&s.decodeErrors, 0)
	atomic.StoreInt64(&s.packetOut, 0)
	atomic.StoreInt64(&s.flowMod, 0)
	atomic.StoreInt64(&s.directiveErrors, 0)
	atomic.StoreInt64(&s.plans, 0)
	atomic.StoreInt64(&s.planSkipped, 0)
	atomic.StoreInt64(&s.pathErrors, 0)
	atomic.StoreInt64(&s.evicted, 0)
	atomic.StoreInt64(&s.hosts, 0)
	atomic.StoreInt64(&s.unsatisfied, 0)
	atomic.StoreInt64(&s.recommendations, 0)
}

// IncRX atomically add 1 to the counter
func (s *JSONStats) IncRX(t ptp.MessageType) {
	s.rx.inc(int(t))
}

// IncRouted atomically add 1 to the counter
func (s *JSONStats) IncRouted(t ptp.MessageType) {
	s.routed.inc(int(t))
}

// IncDropped atomically add 1 to the counter
func (s *JSONStats) IncDropped(t ptp.MessageType) {
	s.dropped.inc(int(t))
}

// IncUnknownHost atomically add 1 to the counter
func (s *JSONStats) IncUnknownHost(t ptp.MessageType) {
	s.unknownHost.inc(int(t))
}

// IncDecodeError atomically add 1 to the counter
func (s *JSONStats) IncDecodeError() {
	atomic.AddInt64(&s.decodeErrors, 1)
}

// IncPacketOut atomically add 1 to the counter
func (s *JSONStats) IncPacketOut() {
	atomic.AddInt64(&s.packetOut, 1)
}

// IncFlowMod atomically add 1 to the counter
func (s *JSONStats) IncFlowMod() {
	atomic.AddInt64(&s.flowMod, 1)
}

// IncDirectiveError atomically add 1 to the counter
func (s *JSONStats) IncDirectiveError() {
	atomic.AddInt64(&s.directiveErrors, 1)
}

// IncPlan atomically add 1 to the counter
func (s *JSONStats) IncPlan() {
	atomic.AddInt64(&s.plans, 1)
}

// IncPlanSkipped atomically add 1 to the counter
func (s *JSONStats) IncPlanSkipped() {
	atomic.AddInt64(&s.planSkipped, 1)
}

// IncPathError atomically add 1 to the counter
func (s *JSONStats) IncPathError() {
	atomic.AddInt64(&s.pathErrors, 1)
}

// IncEvicted atomically add 1 to the counter
func (s *JSONStats) IncEvicted() {
	atomic.AddInt64(&s.evicted, 1)
}

// SetHosts atomically sets number of known hosts
func (s *JSONStats) SetHosts(hosts int64) {
	atomic.StoreInt64(&s.hosts, hosts)
}

// SetUnsatisfied atomically sets number of hosts with fewer paths than required
func (s *JSONStats) SetUnsatisfied(hosts int64) {
	atomic.StoreInt64(&s.unsatisfied, hosts)
}

// SetRecommendations atomically sets number of recommended links
func (s *JSONStats) SetRecommendations(links int64) {
	atomic.StoreInt64(&s.recommendations, links)
}
