// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package api implements the read-only HTTP surface: token listings,
// breeding history, proxied object-store content, and the one
// write path, a signed name update.
package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/escrin/nftrout-indexer/internal/ipfsclient"
	"github.com/escrin/nftrout-indexer/internal/model"
	"github.com/escrin/nftrout-indexer/internal/signing"
	"github.com/escrin/nftrout-indexer/internal/storage"
)

// Server holds the handles handlers read from; it never writes to the
// chain or object store.
type Server struct {
	Store *storage.Store
	Obj   *ipfsclient.Client
	Log   *zap.Logger
}

// Router builds the chi router described by spec.md's Read API table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Get("/ipfs/*cid", s.handleIpfs)
	r.Get("/trout/{chain}/", s.handleListTokens)
	r.Get("/trout/{chain}/{id}/metadata.json", s.handleMetadata)
	r.Get("/trout/{chain}/{id}/image.svg", s.handleImage)
	r.Get("/trout/{chain}/{id}/events", s.handleEvents)
	r.Post("/trout/{chain}/{id}/name", s.handleSetName)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

type listResponse[T any] struct {
	Result []T `json:"result"`
}

// writeJSON serializes v as a 200 response. Callers already know v
// marshals cleanly (it is always one of our own model types).
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps any storage or object-store failure reaching here
// to 500; not-found and signature-verification paths are handled by
// their callers before this is ever invoked, per spec.md §7.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseChain(r *http.Request) (model.ChainID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "chain"), 10, 32)
	if err != nil {
		return 0, false
	}
	return model.ChainID(n), true
}

func parseTokenID(r *http.Request) (model.TokenID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return model.TokenID(n), true
}

func (s *Server) handleIpfs(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "cid")
	if path == "" {
		http.NotFound(w, r)
		return
	}
	base := path
	for i, c := range path {
		if c == '/' {
			base = path[:i]
			break
		}
	}
	pinned, err := s.Store.IsCidPinned(r.Context(), model.Cid(base))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !pinned {
		http.NotFound(w, r)
		return
	}
	rc, err := s.Obj.Cat(model.Cid(path))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()
	io.Copy(w, rc)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	chain, ok := parseChain(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	tokens, err := s.Store.ListTokensForUI(r.Context(), &chain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, listResponse[model.TokenForUi]{Result: tokens})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	trout, ok := parseTrout(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	cid, ok, err := s.Store.TokenCid(r.Context(), trout, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	var meta model.TroutMetadata
	if err := s.Obj.DagGet(r.Context(), cid, &meta); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, meta)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	trout, ok := parseTrout(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	cid, ok, err := s.Store.TokenCid(r.Context(), trout, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	var meta model.TroutMetadata
	if err := s.Obj.DagGet(r.Context(), cid, &meta); err != nil {
		s.writeError(w, r, err)
		return
	}
	rc, err := s.Obj.Cat(meta.Image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "image/svg+xml")
	io.Copy(w, rc)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	trout, ok := parseTrout(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	events, err := s.Store.TokenEvents(r.Context(), trout)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, listResponse[model.EventForUi]{Result: events})
}

type setNameRequest struct {
	Name string `json:"name"`
	Sig  string `json:"sig"`
}

func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	trout, ok := parseTrout(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	var req setNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sig, err := decodeSig(req.Sig)
	if err != nil {
		http.Error(w, "invalid signature encoding", http.StatusBadRequest)
		return
	}
	signer, err := signing.Recover(trout.Token, req.Name, sig)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	owner, ok, err := s.Store.TokenOwner(r.Context(), trout)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if signer != owner {
		http.Error(w, "signer is not the current owner", http.StatusForbidden)
		return
	}
	err = s.Store.WithTx(r.Context(), func(tx *storage.Tx) error {
		return tx.SetTokenName(r.Context(), trout, req.Name)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeSig accepts an optionally 0x-prefixed 65-byte hex signature.
func decodeSig(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding signature: %w", err)
	}
	return b, nil
}

func parseTrout(r *http.Request) (model.TroutID, bool) {
	chain, ok := parseChain(r)
	if !ok {
		return model.TroutID{}, false
	}
	id, ok := parseTokenID(r)
	if !ok {
		return model.TroutID{}, false
	}
	return model.TroutID{Chain: chain, Token: id}, true
}
