//
// Copyright (c) SAS Institute Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package channel

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sassoftware/apkchannel/lib/sigerrors"
)

var (
	buckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

	MetricOperations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apkchannel_operation_seconds",
			Help:    "A histogram of latencies for channel block operations",
			Buckets: buckets,
		},
		[]string{"op"},
	)
	MetricResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apkchannel_results",
			Help: "Outcome of channel block operations by error kind",
		},
		[]string{"op", "result"},
	)
)

func observe(op string, start time.Time, err error) {
	result := sigerrors.KindOf(err)
	switch {
	case errors.Is(err, context.Canceled):
		result = "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		result = "deadline"
	}
	MetricOperations.WithLabelValues(op).Observe(time.Since(start).Seconds())
	MetricResults.WithLabelValues(op, result).Inc()
}
