package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"homeservices/internal/config"
	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

const replayHeader = "Idempotent-Replay"

// idempotency replays the stored response of a mutating request repeated with the
// same key. A repeat that arrives while the first one is running gets 409.
// Keys are scoped per caller. Store failures let the request through.
type idempotency struct {
	store  domain.IdempotencyStore
	header string
	ttl    time.Duration
	logger *zerolog.Logger
}

func newIdempotency(cfg config.APIIdempotencyConfig, store domain.IdempotencyStore, logger *zerolog.Logger) *idempotency {
	header := cfg.Header
	if header == "" {
		header = "X-Idempotency-Key"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = models.DefaultIdempotencyTTL * time.Second
	}
	return &idempotency{store: store, header: header, ttl: ttl, logger: logger}
}

func (m *idempotency) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(m.header))
		if m.store == nil || key == "" || !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		if actor, ok := ActorFromContext(r.Context()); ok {
			key = actor.UserID + ":" + key
		}
		key = r.Method + ":" + r.URL.Path + ":" + key
		log := requestLogger(r, m.logger)

		reserved, err := m.store.Reserve(r.Context(), key, m.ttl)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency reserve failed, continuing without guard")
			next.ServeHTTP(w, r)
			return
		}
		if !reserved {
			record, err := m.store.Get(r.Context(), key)
			if err == nil && record.Done() {
				replay(w, record)
				return
			}
			writeError(w, http.StatusConflict, "request with this idempotency key is still processing")
			return
		}

		// The outcome is stored even if the client has gone away by now.
		ctx := context.WithoutCancel(r.Context())
		release := func() {
			if err := m.store.Release(ctx, key); err != nil {
				log.Warn().Err(err).Msg("idempotency release failed")
			}
		}

		// A panic never produced an answer, free the key for a retry.
		defer func() {
			if p := recover(); p != nil {
				release()
				panic(p)
			}
		}()

		rec := &bufferedRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// 5xx is not a final answer, the client may retry with the same key.
		if rec.status >= http.StatusInternalServerError {
			release()
			return
		}

		record := &models.IdempotencyRecord{
			StatusCode:  rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}
		if err := m.store.Complete(ctx, key, record, m.ttl); err != nil {
			log.Warn().Err(err).Msg("idempotency complete failed")
		}
	})
}

func replay(w http.ResponseWriter, record *models.IdempotencyRecord) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(record.StatusCode)
	_, _ = w.Write(record.Body)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// bufferedRecorder passes the response through and keeps a copy of the body.
type bufferedRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *bufferedRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *bufferedRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
