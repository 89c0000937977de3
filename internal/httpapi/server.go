// Package httpapi implements the JSON/HTTP surface described informatively
// in spec.md §6: IMT routes mounted at /imt and mirrored SMT routes mounted
// at /smt. Routing is github.com/gorilla/mux, CORS is permissive via
// github.com/rs/cors (the idiomatic Go analogue of tower_http's
// CorsLayer::permissive()), and every handler is wrapped with a Prometheus
// request-duration histogram and a zap-logged, uuid-tagged request line.
package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/commitree/commitree/apperr"
	"github.com/commitree/commitree/internal/obs"
	"github.com/commitree/commitree/internal/rootcache"
	"github.com/commitree/commitree/merkle/hashers"
	"github.com/commitree/commitree/trees/imt"
	"github.com/commitree/commitree/trees/smt"
)

// treeID identifies the single tree instance of each kind this server
// process hosts. There is no multi-tenancy in scope, so the cache key's
// treeID component is a fixed label rather than a caller-supplied value.
const treeID = "default"

const (
	kindIMT = "imt"
	kindSMT = "smt"
)

// Server wires the incremental and sparse tree engines behind the HTTP
// surface. Either tree may be nil, in which case its routes 404.
type Server struct {
	imtTree imt.Tree
	smtTree *smt.Tree
	logger  *zap.Logger
	metrics *obs.Metrics
	cache   *rootcache.Cache
}

// NewServer constructs a Server. Pass a nil imtTree or smtTree to omit that
// half of the surface. cache may be nil, which disables the root/proof
// response cache entirely — every rootcache.Cache method is a no-op on a nil
// receiver, so handlers never need to branch on whether caching is enabled.
func NewServer(imtTree imt.Tree, smtTree *smt.Tree, logger *zap.Logger, metrics *obs.Metrics, cache *rootcache.Cache) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = obs.NewMetrics()
	}
	return &Server{imtTree: imtTree, smtTree: smtTree, logger: logger, metrics: metrics, cache: cache}
}

// Handler builds the full routed, instrumented, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	if s.imtTree != nil {
		r.HandleFunc("/imt/add-leaf", s.wrap("imt_add_leaf", s.handleIMTAddLeaf)).Methods(http.MethodPost)
		r.HandleFunc("/imt/add-leaves", s.wrap("imt_add_leaves", s.handleIMTAddLeaves)).Methods(http.MethodPost)
		r.HandleFunc("/imt/get-num-leaves", s.wrap("imt_get_num_leaves", s.handleIMTGetNumLeaves)).Methods(http.MethodGet)
		r.HandleFunc("/imt/get-root", s.wrap("imt_get_root", s.handleIMTGetRoot)).Methods(http.MethodGet)
		r.HandleFunc("/imt/get-proof", s.wrap("imt_get_proof", s.handleIMTGetProof)).Methods(http.MethodPost)
	}

	if s.smtTree != nil {
		r.HandleFunc("/smt/insert", s.wrap("smt_insert", s.handleSMTInsert)).Methods(http.MethodPost)
		r.HandleFunc("/smt/get-root", s.wrap("smt_get_root", s.handleSMTGetRoot)).Methods(http.MethodGet)
		r.HandleFunc("/smt/get-proof", s.wrap("smt_get_proof", s.handleSMTGetProof)).Methods(http.MethodPost)
		r.HandleFunc("/smt/verify-membership", s.wrap("smt_verify_membership", s.handleSMTVerifyMembership)).Methods(http.MethodPost)
		r.HandleFunc("/smt/verify-non-membership", s.wrap("smt_verify_non_membership", s.handleSMTVerifyNonMembership)).Methods(http.MethodPost)
	}

	return cors.AllowAll().Handler(r)
}

// wrap attaches the Prometheus timing/count and the request-scoped zap
// logger (carrying a uuid request ID) around a route handler.
func (s *Server) wrap(route string, h func(*requestContext, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		rc := &requestContext{
			ctx:    r.Context(),
			logger: s.logger.With(zap.String("request_id", reqID), zap.String("route", route)),
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(rc, sw, r)

		s.metrics.Observe(route, obs.StatusClass(sw.status), time.Since(start))
		rc.logger.Info("request completed",
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)))
	}
}

type requestContext struct {
	ctx    context.Context
	logger *zap.Logger
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(rc *requestContext, w http.ResponseWriter, err error) {
	status := httpStatusFor(apperr.KindOf(err))
	if status >= 500 {
		rc.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// httpStatusFor maps an apperr.Kind to the HTTP status table in spec.md §7.
func httpStatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput, apperr.CapacityExceeded, apperr.NotFound:
		return http.StatusBadRequest
	case apperr.StorageError, apperr.InvariantViolated:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func encodeHex(h hashers.Hash) string {
	return hex.EncodeToString(h[:])
}

// encodeHexBytes is encodeHex's counterpart for the IMT, whose root and
// level-0 proof siblings are raw, variable-length bytes rather than a fixed
// hashers.Hash.
func encodeHexBytes(b []byte) string {
	return hex.EncodeToString(b)
}
