package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
)

const (
	namespace = "dinghy"

	statusBroadcast = "broadcast"
	statusFailed    = "failed"
	noReason        = "none"
)

var (
	ErrMissingStatsDir = fmt.Errorf("missing stats dir")

	feeBuckets    = prometheus.ExponentialBuckets(250, 2, 12)
	inputsBuckets = []float64{1, 2, 3, 5, 8, 13, 21, 34}
)

// ServiceOpts holds configuration options for the metrics service.
// Registry defaults to the prometheus default registry.
type ServiceOpts struct {
	StatsDir string
	Registry *prometheus.Registry
}

func (o ServiceOpts) validate() error {
	if len(o.StatsDir) == 0 {
		return ErrMissingStatsDir
	}
	return nil
}

// Service collects the outcome of every send attempt by listening to the
// events of the tx repository.
type Service struct {
	opts       ServiceOpts
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	sendStarted prometheus.Counter
	sendTotal   *prometheus.CounterVec
	sendFee     prometheus.Histogram
	sendInputs  prometheus.Histogram

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewService(opts ServiceOpts) (*Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("metrics: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("metrics: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	svc := &Service{
		opts:       opts,
		registerer: registerer,
		gatherer:   gatherer,
		log:        logFn,
		warn:       warnFn,
	}

	sendStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "send_started_total",
		Help:      "Number of send attempts.",
	})
	sendTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "send_total",
		Help:      "Number of completed send attempts by final status and failure reason.",
	}, []string{"status", "reason"})
	sendFee := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "send_fee_sats",
		Help:      "Fee in sats paid by broadcasted txs.",
		Buckets:   feeBuckets,
	})
	sendInputs := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "send_inputs",
		Help:      "Number of inputs spent by broadcasted txs.",
		Buckets:   inputsBuckets,
	})

	svc.sendStarted = registerIfNotExists(registerer, sendStarted).(prometheus.Counter)
	svc.sendTotal = registerIfNotExists(registerer, sendTotal).(*prometheus.CounterVec)
	svc.sendFee = registerIfNotExists(registerer, sendFee).(prometheus.Histogram)
	svc.sendInputs = registerIfNotExists(registerer, sendInputs).(prometheus.Histogram)

	return svc, nil
}

// Start registers the service as handler of the events published by the
// given repo manager.
func (s *Service) Start(rm ports.RepoManager) {
	rm.RegisterHandlerForTxEvent(domain.TransactionAdded, s.handleTxEvent)
	rm.RegisterHandlerForTxEvent(domain.TransactionBroadcast, s.handleTxEvent)
	rm.RegisterHandlerForTxEvent(domain.TransactionFailed, s.handleTxEvent)
	s.log("start collecting send metrics")
}

// Stop dumps the collected metrics to a new file in the stats dir.
func (s *Service) Stop() {
	path, err := s.Dump()
	if err != nil {
		s.warn(err, "error while dumping metrics")
		return
	}
	s.log("stop, metrics dumped to %s", path)
}

// Dump writes all the gathered metrics in text exposition format to a file
// named after the current time and returns its path.
func (s *Service) Dump() (string, error) {
	if err := os.MkdirAll(s.opts.StatsDir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(
		s.opts.StatsDir,
		fmt.Sprintf("%s.prom", time.Now().UTC().Format("20060102T150405.000000000")),
	)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	metricFamilies, err := s.gatherer.Gather()
	if err != nil {
		return "", err
	}
	for _, mf := range metricFamilies {
		if _, err := expfmt.MetricFamilyToText(writer, mf); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (s *Service) handleTxEvent(event domain.TransactionEvent) {
	tx := event.Transaction
	if tx == nil {
		return
	}

	switch event.EventType {
	case domain.TransactionAdded:
		s.sendStarted.Inc()
	case domain.TransactionBroadcast:
		s.sendFee.Observe(float64(tx.Fee))
		s.sendInputs.Observe(float64(len(tx.Inputs)))
		s.sendTotal.WithLabelValues(statusBroadcast, noReason).Inc()
	case domain.TransactionFailed:
		s.sendTotal.WithLabelValues(statusFailed, tx.FailureReason.String()).Inc()
	}
}

func registerIfNotExists(
	registerer prometheus.Registerer, collector prometheus.Collector,
) prometheus.Collector {
	if err := registerer.Register(collector); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return collector
}
