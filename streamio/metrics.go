// Copyright 2018 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package streamio

import "github.com/prometheus/client_golang/prometheus"

// Metrics collected across every Writer/Reader in the process. Call
// RegisterMetrics to expose them on a caller-owned
// prometheus.Registerer, the way outline-ss-server registers its own
// per-feature counters.
var (
	writerChunksEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamio",
		Subsystem: "writer",
		Name:      "chunks_emitted_total",
		Help:      "Ciphertext chunks emitted to the transport.",
	})
	writerBytesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamio",
		Subsystem: "writer",
		Name:      "ciphertext_bytes_emitted_total",
		Help:      "Ciphertext bytes emitted to the transport, tags included.",
	})
	writerAEADFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamio",
		Subsystem: "writer",
		Name:      "aead_failures_total",
		Help:      "Encrypt operations that failed.",
	})
	readerBytesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamio",
		Subsystem: "reader",
		Name:      "plaintext_bytes_delivered_total",
		Help:      "Plaintext bytes delivered to callers.",
	})
	readerAEADFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamio",
		Subsystem: "reader",
		Name:      "aead_failures_total",
		Help:      "Decrypt operations that failed.",
	})
)

// RegisterMetrics registers all of the package's collectors with reg.
// It is safe to call at most once per registerer.
func RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		writerChunksEmitted,
		writerBytesEmitted,
		writerAEADFailures,
		readerBytesDelivered,
		readerAEADFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
