/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package filtercheck

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/libregraph/filterkit/pkg/ldapfilter"
)

const (
	metricsSubsystemFilterCheck = "filtercheck"
)

// MustRegister registers the provided collectors with the provided registerer
// and panics upon the first registration that causes an error.
func MustRegister(reg prometheus.Registerer, cs ...prometheus.Collector) {
	reg.MustRegister(cs...)
}

type filterCheckCollector struct {
	stats *Stats

	parsedDesc      *prometheus.Desc
	validDesc       *prometheus.Desc
	invalidDesc     *prometheus.Desc
	truncatedDesc   *prometheus.Desc
	diagnosticsDesc *prometheus.Desc
}

// NewCollector returns a collector exposing the provided stats.
func NewCollector(stats *Stats) prometheus.Collector {
	return &filterCheckCollector{
		stats: stats,

		parsedDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystemFilterCheck, "filters_total"),
			"Total number of checked filters",
			nil,
			nil,
		),
		validDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystemFilterCheck, "valid_filters_total"),
			"Total number of valid filters",
			nil,
			nil,
		),
		invalidDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystemFilterCheck, "invalid_filters_total"),
			"Total number of invalid filters",
			nil,
			nil,
		),
		truncatedDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystemFilterCheck, "truncated_filters_total"),
			"Total number of filters which ended before they were complete",
			nil,
			nil,
		),
		diagnosticsDesc: prometheus.NewDesc(
			prometheus.BuildFQName("", metricsSubsystemFilterCheck, "diagnostics_total"),
			"Total number of diagnostics by kind",
			[]string{"kind"},
			nil,
		),
	}
}

// Describe is implemented with DescribeByCollect. That's possible because the
// Collect method always returns the same metrics with the same descriptors.
func (fc *filterCheckCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(fc, ch)
}

// Collect creates constant metrics from a snapshot of the stats.
func (fc *filterCheckCollector) Collect(ch chan<- prometheus.Metric) {
	stats := fc.stats.Clone()
	if stats == nil {
		stats = &Stats{}
	}

	ch <- prometheus.MustNewConstMetric(fc.parsedDesc, prometheus.CounterValue, float64(stats.Parsed))
	ch <- prometheus.MustNewConstMetric(fc.validDesc, prometheus.CounterValue, float64(stats.Valid))
	ch <- prometheus.MustNewConstMetric(fc.invalidDesc, prometheus.CounterValue, float64(stats.Invalid))
	ch <- prometheus.MustNewConstMetric(fc.truncatedDesc, prometheus.CounterValue, float64(stats.Truncated))

	for _, kind := range ldapfilter.ErrorKinds {
		ch <- prometheus.MustNewConstMetric(
			fc.diagnosticsDesc,
			prometheus.CounterValue,
			float64(stats.Diagnostics[kind]),
			kind.String(),
		)
	}
}

// WriteToTextfile writes the metrics of the provided stats to filename in
// the text exposition format, for example for the node exporter textfile
// collector.
func WriteToTextfile(filename string, stats *Stats) error {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(stats)); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(filename, reg)
}
