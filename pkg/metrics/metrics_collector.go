package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP 指标
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// 券码与打卡业务指标
var (
	vouchersIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vouchers_issued_total",
			Help: "Voucher claims by outcome (created, reused)",
		},
		[]string{"outcome"},
	)

	voucherRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_redemptions_total",
			Help: "Voucher redemption attempts by result",
		},
		[]string{"result"},
	)

	vouchersSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vouchers_swept_expired_total",
			Help: "Stale issued vouchers persisted as expired by the sweeper",
		},
	)

	checkInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Partner check-ins by result (recorded, duplicate, rejected)",
		},
		[]string{"result"},
	)
)

// 数据库连接池指标
var (
	dbConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Database pool connections by state (open, in_use, idle)",
		},
		[]string{"state"},
	)

	dbWaitTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_wait_count",
			Help: "Cumulative number of connections waited for",
		},
	)

	dbWaitSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_wait_seconds",
			Help: "Cumulative time blocked waiting for a connection",
		},
	)
)

// RecordDBPool 写入一次连接池快照
func RecordDBPool(stats sql.DBStats) {
	dbConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	dbConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	dbConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	dbWaitTotal.Set(float64(stats.WaitCount))
	dbWaitSeconds.Set(stats.WaitDuration.Seconds())
}

// RecordHTTPRequest 记录 HTTP 请求指标
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, getStatusCategory(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// VoucherIssued outcome: created | reused
func VoucherIssued(outcome string) {
	vouchersIssued.WithLabelValues(outcome).Inc()
}

// VoucherRedemption result: redeemed | already_redeemed | expired | not_found | conflict
func VoucherRedemption(result string) {
	voucherRedemptions.WithLabelValues(result).Inc()
}

func VouchersSwept(n int64) {
	vouchersSwept.Add(float64(n))
}

func CheckIn(result string) {
	checkInsTotal.WithLabelValues(result).Inc()
}

// getStatusCategory 获取状态分类
func getStatusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return strconv.Itoa(status)
	}
}
