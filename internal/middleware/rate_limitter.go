package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"VisionAnalytica/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many requests")
)

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	bucket    map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
	mutex     *sync.Mutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*rate.Limiter),
		rate:      reqRate,
		burstSize: burstSize,
		mutex:     &sync.Mutex{},
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exist := r.bucket[ip]; !exist {
		r.bucket[ip] = rate.NewLimiter(r.rate, r.burstSize)
	}

	return r.bucket[ip]
}

func (r *rateLimiter) retryAfterSeconds() int {
	if r.rate <= 0 {
		return 1
	}
	return int(math.Ceil(1 / float64(r.rate)))
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()
	limiter := m.rateLimitter.GetLimiterFrom(clientIP)

	if !limiter.Allow() {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"ip":         clientIP,
			"path":       ctx.Path(),
		}).Warn("Too many requests")

		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(m.rateLimitter.retryAfterSeconds()))
		return ctx.Status(fiber.StatusTooManyRequests).JSON(response.Failure{
			Error: ErrTooManyRequests.Error(),
			Code:  "RATE_LIMITED",
		})
	}

	return ctx.Next()
}
