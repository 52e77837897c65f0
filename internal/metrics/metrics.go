// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecodePacketsTotal counts packets handed to the decode entry point by
	// root link type ("dlt/1", "unixpf/2")
	DecodePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firestorm_decode_packets_total",
			Help: "Total number of packets passed to decode",
		},
		[]string{"link"},
	)

	// DecodeUnresolvedTotal counts packets whose root namespace/id has no decoder
	DecodeUnresolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firestorm_decode_unresolved_total",
			Help: "Total number of packets with no decoder for the source link type",
		},
		[]string{"namespace"},
	)

	// DecodeLayersTotal counts recorded layers by protocol
	DecodeLayersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firestorm_decode_layers_total",
			Help: "Total number of decode layers recorded",
		},
		[]string{"protocol"},
	)

	// DecodeAbortsTotal counts decode paths stopped by malformed input
	DecodeAbortsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firestorm_decode_aborts_total",
			Help: "Total number of decode paths aborted on structural errors",
		},
		[]string{"decoder", "reason"},
	)

	// DecodeArenaExhaustedTotal counts layers not recorded because the arena was full
	DecodeArenaExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firestorm_decode_arena_exhausted_total",
			Help: "Total number of layer allocations refused for lack of arena room",
		},
		[]string{"protocol"},
	)

	// FlowFragmentsActive tracks fragmented datagrams currently tracked
	FlowFragmentsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "firestorm_flow_fragments_active",
			Help: "Number of fragmented IPv4 datagrams being tracked",
		},
	)

	// FlowFragmentsRejectedTotal counts fragments refused by the per-source rate limit
	FlowFragmentsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "firestorm_flow_fragments_rejected_total",
			Help: "Total number of fragments over the per-source rate limit",
		},
	)

	// FlowTCPActive tracks TCP connections in the flow table
	FlowTCPActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "firestorm_flow_tcp_active",
			Help: "Number of TCP connections being tracked",
		},
	)

	// PipelineFilteredTotal counts packets dropped by the pre-decode BPF filter
	PipelineFilteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firestorm_pipeline_filtered_total",
			Help: "Total number of packets rejected by the pipeline filter",
		},
		[]string{"source"},
	)

	// PipelineSinkErrorsTotal counts summaries the sink failed to accept
	PipelineSinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firestorm_pipeline_sink_errors_total",
			Help: "Total number of sink send errors",
		},
		[]string{"sink"},
	)
)
