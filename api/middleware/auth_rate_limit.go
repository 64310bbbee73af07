package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// maxAuthBody caps what the limiter buffers to find the submitted email.
const maxAuthBody = 64 << 10

type rateLimiterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy is the fixed window applied to one auth endpoint.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

// NewAuthRateLimitPolicy builds a policy. A zero limit disables that counter.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

func (p AuthRateLimitPolicy) retryAfter() string {
	return strconv.Itoa(max(1, int(math.Ceil(p.window.Seconds()))))
}

type rateCounter struct {
	scope string
	value string
	limit int
}

// AuthRateLimit throttles auth endpoints per client address and per submitted
// email. Emails are hashed before they become part of a key. The client
// address is taken from RemoteAddr, which chi's RealIP has already resolved.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			counters, err := policy.counters(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}

			for _, c := range counters {
				key := store.RateLimitKey(policy.name + ":" + c.scope + ":" + c.value)
				attempts, err := store.IncrWithTTL(ctx, key, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit counter"))
					return
				}
				if attempts <= int64(c.limit) {
					continue
				}
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":   policy.name,
						"scope":    c.scope,
						"attempts": attempts,
						"limit":    c.limit,
					}), "auth attempt throttled")
				}
				w.Header().Set("Retry-After", policy.retryAfter())
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// counters lists the dimensions to count for r. The body is restored so the
// handler can decode it again.
func (p AuthRateLimitPolicy) counters(r *http.Request) ([]rateCounter, error) {
	var out []rateCounter
	if p.ipLimit > 0 {
		if ip := remoteHost(r.RemoteAddr); ip != "" {
			out = append(out, rateCounter{scope: "ip", value: ip, limit: p.ipLimit})
		}
	}
	if p.emailLimit == 0 || r.Body == nil {
		return out, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBody))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if email := strings.ToLower(strings.TrimSpace(payload.Email)); email != "" {
			sum := sha256.Sum256([]byte(email))
			out = append(out, rateCounter{scope: "email", value: hex.EncodeToString(sum[:]), limit: p.emailLimit})
		}
	}
	return out, nil
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}
