// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package ipfsclient is a stateless facade over a Kubo-compatible
// content-addressed object store: dag_get, cat, pin, and pin status.
// Every operation here is retryable at the caller's discretion. DagGet
// takes its timeout from ctx; Cat, Pin and IsPinned take no context
// and are bounded only by the http.Client passed to New. The client
// adds no timeout of its own.
package ipfsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/escrin/nftrout-indexer/internal/model"
)

// Error wraps every object-store failure the client surfaces.
type Error struct{ err error }

func (e *Error) Error() string { return "object store error: " + e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{err: err}
}

// Client talks to one Kubo HTTP RPC endpoint. Cat/Pin/IsPinned go
// through go-ipfs-api's shell.Shell, the library the rest of the
// retrieval pack's NFT indexers use for the same surface; DagGet goes
// over a raw POST because shell.Shell's DagGet decodes DAG-JSON
// straight into the caller-supplied value without resolving IPLD
// links, and TroutMetadata's CID fields need model.Cid's
// slash-link-aware UnmarshalJSON to run on the raw response body
// first (see model.Cid.UnmarshalJSON).
type Client struct {
	sh      *shell.Shell
	httpc   *http.Client
	baseURL string // the endpoint passed to New, always ending in "/"
}

// New builds a Client for endpoint, a base URL such as
// "http://127.0.0.1:5001/api/v0/" (trailing slash enforced by config).
func New(endpoint string, httpc *http.Client) *Client {
	base := strings.TrimSuffix(endpoint, "/") + "/"
	shellBase := strings.TrimSuffix(strings.TrimSuffix(base, "/"), "/api/v0")
	return &Client{
		sh:      shell.NewShellWithClient(shellBase, httpc),
		httpc:   httpc,
		baseURL: base,
	}
}

// DagGet fetches cid as a DAG-JSON object and decodes it into out.
func (c *Client) DagGet(ctx context.Context, cid model.Cid, out interface{}) error {
	u := c.baseURL + "dag/get?arg=" + url.QueryEscape(string(cid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return wrap(err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return wrap(fmt.Errorf("dag/get %s: %w", cid, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return wrap(fmt.Errorf("dag/get %s: status %d: %s", cid, resp.StatusCode, body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return wrap(fmt.Errorf("decoding dag/get %s: %w", cid, err))
	}
	return nil
}

// Cat streams the raw bytes behind cid. Callers are responsible for
// closing the returned reader.
func (c *Client) Cat(cid model.Cid) (io.ReadCloser, error) {
	rc, err := c.sh.Cat(string(cid))
	if err != nil {
		return nil, wrap(fmt.Errorf("cat %s: %w", cid, err))
	}
	return rc, nil
}

// Pin requests the endpoint retain cid indefinitely.
func (c *Client) Pin(cid model.Cid) error {
	if err := c.sh.Pin(string(cid)); err != nil {
		return wrap(fmt.Errorf("pin %s: %w", cid, err))
	}
	return nil
}

// IsPinned reports whether cid is currently pinned. An endpoint
// response indicating "not pinned" or "invalid path" is reported as
// (false, nil), never as an error — only a genuine transport/endpoint
// failure returns a non-nil error.
func (c *Client) IsPinned(cid model.Cid) (bool, error) {
	ok, err := c.sh.IsPinned(string(cid))
	if err != nil {
		if strings.Contains(err.Error(), "not pinned") || strings.Contains(err.Error(), "invalid path") {
			return false, nil
		}
		return false, wrap(fmt.Errorf("pin/ls %s: %w", cid, err))
	}
	return ok, nil
}
