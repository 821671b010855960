// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"

	"github.com/tabpulse/tabpulse/lib/service"
)

// RemoteStore is the Store backed by the presence service socket.
// Each call is one request-response exchange; the service applies its
// own timeouts, so callers get either a result or an error within a
// bounded time.
type RemoteStore struct {
	client *service.Client
}

// NewRemoteStore returns a store speaking to the service socket at
// socketPath.
func NewRemoteStore(socketPath string) *RemoteStore {
	return &RemoteStore{client: service.NewClient(socketPath)}
}

// Upsert sends the record to the service's "upsert" action.
func (s *RemoteStore) Upsert(ctx context.Context, record Record) error {
	return s.client.Call(ctx, "upsert", map[string]any{"record": record}, nil)
}

// QueryUser fetches all of userID's records via the "query" action.
func (s *RemoteStore) QueryUser(ctx context.Context, userID string) ([]Record, error) {
	var reply struct {
		Records []Record `cbor:"records"`
	}
	err := s.client.Call(ctx, "query", map[string]any{"user_id": userID}, &reply)
	if err != nil {
		return nil, err
	}
	return reply.Records, nil
}
