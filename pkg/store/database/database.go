// Package database provides the sqlx implementation of store.Store.
package database

import (
	"context"

	"github.com/514-labs/cla-bot-sub001/pkg/config"
	"github.com/514-labs/cla-bot-sub001/pkg/db"
	"github.com/514-labs/cla-bot-sub001/pkg/store"
	"github.com/charmbracelet/log"
)

type datastore struct {
	ctx    context.Context
	cfg    *config.Config
	db     *db.DB
	logger *log.Logger

	*orgStore
	*signatureStore
	*bypassStore
	*webhookDeliveryStore
	*auditLogStore
}

// New returns a new store.Store database.
func New(ctx context.Context, db *db.DB) store.Store {
	cfg := config.FromContext(ctx)
	logger := log.FromContext(ctx).WithPrefix("store")

	s := &datastore{
		ctx:    ctx,
		cfg:    cfg,
		db:     db,
		logger: logger,

		orgStore:             &orgStore{},
		signatureStore:       &signatureStore{},
		bypassStore:          &bypassStore{},
		webhookDeliveryStore: &webhookDeliveryStore{},
		auditLogStore:        &auditLogStore{},
	}

	return s
}
