// Package handlers contains Telegram update handlers: the /start command and
// the business-message dispatcher feeding the reconciliation engine.
package handlers

import (
	"log/slog"

	"github.com/ykaravaev/secretarybot/internal/config"
	"github.com/ykaravaev/secretarybot/internal/database"
	"github.com/ykaravaev/secretarybot/internal/notify"
	"github.com/ykaravaev/secretarybot/internal/reconcile"
)

// HandlerDeps provides dependencies for Telegram update handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	Engine   *reconcile.Engine
	Notifier *notify.Notifier
}
