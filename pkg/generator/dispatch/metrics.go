package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhunter_rounds_total",
		Help: "Completed search rounds",
	}, []string{"device"})

	candidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhunter_candidates_total",
		Help: "Candidate keys hashed and scored",
	}, []string{"device"})

	deviceSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "keyhunter_device_speed",
		Help: "Moving average of candidates per second",
	}, []string{"device"})

	deviceBestScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "keyhunter_device_best_score",
		Help: "Best score reported by a device",
	}, []string{"device"})

	bestScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyhunter_best_score",
		Help: "Best score across all devices",
	})

	discoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhunter_discoveries_total",
		Help: "Reported discoveries",
	}, []string{"target"})

	initProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyhunter_init_progress_ratio",
		Help: "Fraction of candidates initialized across all devices",
	})

	launchFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyhunter_launch_fallbacks_total",
		Help: "Kernels whose local work size was abandoned",
	}, []string{"device", "kernel"})
)
