package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/musicportal-backend/api/responses"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/musicportal-backend/pkg/redis"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

// Idempotency TTLs: uploads can be retried for a day, moderation decisions
// for a week.
const (
	UploadIdempotencyTTL   = 24 * time.Hour
	DecisionIdempotencyTTL = 7 * 24 * time.Hour
)

// storedResponse is the Redis value under an idempotency key. A record with
// Done=false is a reservation held while the first request runs.
type storedResponse struct {
	Done        bool   `json:"done"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// the route it wraps. Keys are scoped to caller, method and path. Requests
// without the header pass through untouched, and 5xx responses are dropped so
// the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			fingerprint, err := fingerprintBody(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			prior, err := loadStored(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if prior != nil {
				replay(ctx, logg, w, prior, fingerprint)
				return
			}

			reservation, _ := json.Marshal(storedResponse{Fingerprint: fingerprint})
			won, err := store.SetNX(ctx, key, string(reservation), ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !won {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress"))
				return
			}

			capture := &capturingWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			finish(ctx, store, logg, key, ttl, fingerprint, capture)
		})
	}
}

// finish swaps the reservation for the captured response, or just drops it
// when the handler failed with a 5xx.
func finish(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string, ttl time.Duration, fingerprint string, c *capturingWriter) {
	// the request context may already be canceled once the client hung up
	ctx = context.WithoutCancel(ctx)
	if err := store.Del(ctx, key); err != nil {
		logg.Error(ctx, "release idempotency key", err)
		return
	}
	status := c.statusCode()
	if status >= http.StatusInternalServerError {
		return
	}
	payload, err := json.Marshal(storedResponse{
		Done:        true,
		Fingerprint: fingerprint,
		Status:      status,
		ContentType: c.Header().Get("Content-Type"),
		Body:        c.body.Bytes(),
	})
	if err != nil {
		logg.Error(ctx, "marshal idempotency record", err)
		return
	}
	if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil {
		logg.Error(ctx, "persist idempotency record", err)
	}
}

func loadStored(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if pkgredis.IsMiss(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec storedResponse
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, rec *storedResponse, fingerprint string) {
	switch {
	case rec.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case !rec.Done:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress"))
	default:
		if rec.ContentType != "" {
			w.Header().Set("Content-Type", rec.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}

// fingerprintBody hashes the body and rewinds it for the handler.
func fingerprintBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return hex.EncodeToString(sha256.New().Sum(nil)), nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

type capturingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *capturingWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *capturingWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
