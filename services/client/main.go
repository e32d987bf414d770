package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playerchat/internal/api"
	"github.com/playerchat/internal/config"
	"github.com/playerchat/internal/format"
	"github.com/playerchat/internal/hub"
	"github.com/playerchat/internal/logger"
	"github.com/playerchat/internal/ws"
)

func main() {
	logger.SetPrefix("client")
	peer := flag.Int64("peer", 0, "open a conversation with this peer id")
	flag.Parse()

	logger.Info("starting messaging client")
	cfg := config.Load()

	if cfg.SessionCookie == "" {
		logger.Error("SESSION_COOKIE не задан — войдите через оболочку и передайте куку")
		os.Exit(1)
	}

	apiClient := api.NewClient(cfg.APIBaseURL, cfg.SessionCookieName, cfg.SessionCookie, cfg.HTTPTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
	auth, err := apiClient.CheckAuth(authCtx)
	cancel()
	if err != nil {
		logger.Errorf("check auth: %v", err)
		os.Exit(1)
	}
	if !auth.Authenticated {
		logger.Error("сессия не авторизована")
		os.Exit(1)
	}
	logger.Infof("signed in as %s (id=%d)", auth.Username, auth.UserID)

	h := hub.New(apiClient, auth.UserID, hub.Config{
		TypingShowWindow: cfg.TypingShowWindow,
		TypingIdleStop:   cfg.TypingIdleStop,
		ConfirmTimeout:   cfg.ConfirmTimeout,
		PreviewMaxLen:    cfg.PreviewMaxLen,
	})

	bootCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
	err = h.Bootstrap(bootCtx)
	cancel()
	if err != nil {
		logger.Errorf("bootstrap: %v", err)
		os.Exit(1)
	}
	logger.Infof("loaded %d conversations, %d players", len(h.Directory().Snapshot()), len(h.Roster().All()))

	header := http.Header{}
	header.Set("Cookie", cfg.SessionCookieName+"="+cfg.SessionCookie)
	conn, err := ws.Dial(ctx, cfg.WSURL, header, h, ws.Options{
		WriteTimeout:   time.Duration(cfg.WSWriteTimeout) * time.Second,
		PongTimeout:    time.Duration(cfg.WSPongTimeout) * time.Second,
		MaxMessageSize: int64(cfg.WSMaxMessageSize),
		SendBufferSize: cfg.WSSendBufferSize,
	})
	if err != nil {
		logger.Errorf("ws dial %s: %v", cfg.WSURL, err)
		os.Exit(1)
	}
	h.SetEmitter(conn)
	go h.Run(ctx)

	if *peer != 0 {
		openCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
		err := h.OpenConversation(openCtx, *peer)
		cancel()
		if err != nil {
			logger.Errorf("open conversation %d: %v", *peer, err)
		} else if p, ok := h.Session().Peer(); ok {
			logger.Infof("opened conversation with %s (%d messages)", p.Username, len(h.Session().Messages()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			h.SetEmitter(nil)
			conn.Close()
			conn.Wait()
			return
		case <-conn.Done():
			logger.Error("push channel closed")
			conn.Wait()
			return
		case u := <-h.Updates():
			logUpdate(h, u)
		}
	}
}

func logUpdate(h *hub.Hub, u hub.Update) {
	switch u.Kind {
	case hub.UpdateDirectory:
		list := h.Directory().Snapshot()
		if len(list) == 0 {
			return
		}
		top := list[0]
		when := ""
		if top.LastMessageTime != nil {
			when = format.RelativeTime(*top.LastMessageTime, time.Now())
		}
		logger.Infof("directory: %d conversations, top=%s (%s) unread=%d", len(list), top.Username, when, top.UnreadCount)
	case hub.UpdateSession:
		p, ok := h.Session().Peer()
		if !ok {
			return
		}
		typing := ""
		if h.Session().TypingActive() {
			typing = " — is typing.."
		}
		logger.Infof("session %s: %d messages%s", p.Username, len(h.Session().Messages()), typing)
	case hub.UpdatePresence:
		logger.Infof("presence: user=%d %s", u.UserID, u.Status)
	case hub.UpdateRoster:
		logger.Debugf("roster: %d players", len(h.Roster().All()))
	}
}
