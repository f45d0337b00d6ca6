package handlers

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/agent-platform/internal/chat"
	"github.com/suPer8Hu/agent-platform/internal/config"
)

type Handler struct {
	Cfg      config.Config
	ChatSvc  *chat.Service
	Log      zerolog.Logger
	Hostname string
}

func NewHandler(cfg config.Config, svc *chat.Service, log zerolog.Logger) *Handler {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Handler{Cfg: cfg, ChatSvc: svc, Log: log, Hostname: host}
}
