package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_redis_errors_total",
		Help: "Total Redis command failures by command",
	}, []string{"command"})

	// RateLimitRejections counts requests refused with 429 by limiter name.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctfarena_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"limiter"})
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the HTTP metrics collector for serviceName. The collector
// registers with the default Prometheus registry, so it is only built once per process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request count and latency, skipping the scrape endpoint itself.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		return p.Middleware(c)
	}
}
