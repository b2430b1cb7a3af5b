package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/musicportal-backend/api/responses"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

// maxPeekBytes bounds how much of an auth body is read to find the username.
const maxPeekBytes = 64 << 10

type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// RateLimit is a fixed-window budget for one auth endpoint. Zero limits
// disable that dimension; a zero Window disables the policy.
type RateLimit struct {
	Name        string
	Window      time.Duration
	PerIP       int
	PerUsername int
}

func (p RateLimit) active() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerUsername > 0)
}

// budget is one counter checked for a request, e.g. ip=1.2.3.4.
type budget struct {
	dimension string
	value     string
	limit     int
}

// AuthRateLimit counts attempts per client IP and per (hashed, lowercased)
// username and answers 429 with Retry-After once either budget is spent.
func AuthRateLimit(policy RateLimit, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.active() || store == nil {
			return next
		}
		name := strings.ToLower(strings.TrimSpace(policy.Name))
		if name == "" {
			name = "auth"
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			budgets, err := budgetsFor(policy, r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}

			for _, b := range budgets {
				key := store.RateLimitKey(strings.Join([]string{name, b.dimension, b.value}, ":"))
				count, err := store.IncrWithTTL(ctx, key, policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count <= int64(b.limit) {
					continue
				}
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"policy":    name,
					"dimension": b.dimension,
					"attempts":  count,
					"limit":     b.limit,
				}), "auth rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Round(time.Second).Seconds())))
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func budgetsFor(policy RateLimit, r *http.Request) ([]budget, error) {
	var out []budget
	if policy.PerIP > 0 {
		if ip := clientIP(r); ip != "" {
			out = append(out, budget{dimension: "ip", value: ip, limit: policy.PerIP})
		}
	}
	if policy.PerUsername > 0 {
		username, err := peekUsername(r)
		if err != nil {
			return nil, err
		}
		if username != "" {
			sum := sha256.Sum256([]byte(username))
			out = append(out, budget{dimension: "username", value: hex.EncodeToString(sum[:]), limit: policy.PerUsername})
		}
	}
	return out, nil
}

// peekUsername reads the JSON username field and leaves r.Body replayable.
func peekUsername(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	var body struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(head, &body) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(body.Username)), nil
}

// clientIP trusts the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
