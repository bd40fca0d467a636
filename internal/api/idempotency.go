package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"partsledger/internal/logger"
	"partsledger/internal/utils"
)

// IdempotencyHeader names the client-chosen key of a retryable POST.
const IdempotencyHeader = "Idempotency-Key"

// StoredResponse is a response kept for replay.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore remembers responses by key.
//
// Reserve claims a key and reports false if it was already claimed. Load
// returns the saved response, or nil while the first request is still running.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Load(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

const pendingMarker = "pending"

// RedisIdempotencyStore keeps keys in Redis so every replica sees them.
type RedisIdempotencyStore struct {
	redis  *utils.RedisClient
	prefix string
}

func NewRedisIdempotencyStore(redis *utils.RedisClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{redis: redis, prefix: "partsledger:idem:"}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, s.prefix+key, pendingMarker, ttl)
}

func (s *RedisIdempotencyStore) Load(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := s.redis.Get(ctx, s.prefix+key)
	if errors.Is(err, utils.ErrCacheMiss) || raw == pendingMarker {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp StoredResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	return s.redis.Set(ctx, s.prefix+key, resp, ttl)
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.redis.Delete(ctx, s.prefix+key)
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key. Failed attempts release the key so the client can retry.
// Store errors degrade to normal processing.
func Idempotency(store IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		key = c.Request.Method + ":" + c.FullPath() + ":" + key
		ctx := c.Request.Context()

		reserved, err := store.Reserve(ctx, key, ttl)
		if err != nil {
			logger.Log.Warn("⚠️ idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			saved, err := store.Load(ctx, key)
			switch {
			case err != nil:
				logger.Log.Warn("⚠️ idempotency lookup failed", zap.Error(err))
				c.Next()
			case saved == nil:
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"error": "a request with this Idempotency-Key is still in progress",
					"code":  "request_in_progress",
				})
			default:
				c.Header("Idempotent-Replayed", "true")
				c.Data(saved.Status, saved.ContentType, saved.Body)
				c.Abort()
			}
			return
		}

		// Release runs deferred so a panicking handler does not leave the
		// key pending until the TTL expires.
		succeeded := false
		defer func() {
			if succeeded {
				return
			}
			if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
				logger.Log.Warn("⚠️ failed to release idempotency key", zap.Error(err))
			}
		}()

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= 200 && status < 300 {
			// The work is done; an unsaved response keeps the key pending
			// rather than letting a retry repeat it.
			succeeded = true
			resp := StoredResponse{Status: status, ContentType: w.Header().Get("Content-Type"), Body: w.body.Bytes()}
			if err := store.Save(ctx, key, resp, ttl); err != nil {
				logger.Log.Warn("⚠️ failed to save idempotent response", zap.Error(err))
			}
		}
	}
}
