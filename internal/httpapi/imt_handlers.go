package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/commitree/commitree/apperr"
	"github.com/commitree/commitree/proof"
)

type addLeafRequest struct {
	Leaf string `json:"leaf"`
}

type addLeavesRequest struct {
	Leaves []string `json:"leaves"`
}

type getProofRequest struct {
	Index uint64 `json:"index"`
}

func (s *Server) handleIMTAddLeaf(rc *requestContext, w http.ResponseWriter, r *http.Request) {
	var req addLeafRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode request body"))
		return
	}
	leaf, err := hex.DecodeString(req.Leaf)
	if err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode leaf hex"))
		return
	}
	if err := s.imtTree.AddLeaf(rc.ctx, leaf); err != nil {
		writeError(rc, w, err)
		return
	}
	s.cache.Invalidate(treeID, kindIMT)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleIMTAddLeaves(rc *requestContext, w http.ResponseWriter, r *http.Request) {
	var req addLeavesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode request body"))
		return
	}
	leaves := make([][]byte, len(req.Leaves))
	for i, hexLeaf := range req.Leaves {
		leaf, err := hex.DecodeString(hexLeaf)
		if err != nil {
			writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode leaf hex"))
			return
		}
		leaves[i] = leaf
	}
	if err := s.imtTree.AddLeaves(rc.ctx, leaves); err != nil {
		writeError(rc, w, err)
		return
	}
	s.cache.Invalidate(treeID, kindIMT)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleIMTGetNumLeaves(rc *requestContext, w http.ResponseWriter, _ *http.Request) {
	n, err := s.imtTree.NumLeaves(rc.ctx)
	if err != nil {
		writeError(rc, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"num_leaves": n})
}

func (s *Server) handleIMTGetRoot(rc *requestContext, w http.ResponseWriter, _ *http.Request) {
	if cached, ok := s.cache.GetRoot(treeID, kindIMT); ok {
		writeJSON(w, http.StatusOK, map[string]string{"root": cached})
		return
	}

	root, found, err := s.imtTree.Root(rc.ctx)
	if err != nil {
		writeError(rc, w, err)
		return
	}
	if !found {
		writeError(rc, w, apperr.New(apperr.NotFound, "tree is empty"))
		return
	}
	rootHex := encodeHexBytes(root)
	s.cache.SetRoot(treeID, kindIMT, rootHex)
	writeJSON(w, http.StatusOK, map[string]string{"root": rootHex})
}

func (s *Server) handleIMTGetProof(rc *requestContext, w http.ResponseWriter, r *http.Request) {
	var req getProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rc, w, apperr.Wrap(apperr.InvalidInput, err, "decode request body"))
		return
	}

	cacheKey := strconv.FormatUint(req.Index, 10)
	if cached, ok := s.cache.GetProof(treeID, kindIMT, cacheKey); ok {
		var p proof.Proof
		if err := json.Unmarshal([]byte(cached), &p); err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"proof": p})
			return
		}
	}

	p, found, err := s.imtTree.GetProof(rc.ctx, req.Index)
	if err != nil {
		writeError(rc, w, err)
		return
	}
	if !found {
		writeError(rc, w, apperr.Newf(apperr.InvalidInput, "index %d out of range", req.Index))
		return
	}
	if encoded, err := json.Marshal(p); err == nil {
		s.cache.SetProof(treeID, kindIMT, cacheKey, string(encoded))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"proof": p})
}
