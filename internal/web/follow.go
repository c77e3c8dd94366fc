package web

import (
	"context"
	"encoding/json"
	log "log/slog"
	"time"

	ws "github.com/gorilla/websocket"

	"jarvis/internal/status"
)

// Follow reads status events from the dashboard websocket at url and hands
// them to fn. Dropped connections are redialled every reconnect interval
// until ctx is done.
func Follow(ctx context.Context, url string, reconnect time.Duration, fn func(status.Event)) error {
	if reconnect <= 0 {
		reconnect = 2 * time.Second
	}
	for {
		err := followOnce(ctx, url, fn)
		if ctx.Err() != nil {
			return nil
		}
		if wsIsClosed(err) {
			log.Info("Dashboard closed the feed, reconnecting", "url", url)
		} else {
			log.Warn("Dashboard feed lost, reconnecting", "url", url, "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnect):
		}
	}
}

func followOnce(ctx context.Context, url string, fn func(status.Event)) error {
	conn, _, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Debug("Connected to dashboard", "url", url)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev status.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Debug("Skipping malformed event", "msg", string(msg), "err", err)
			continue
		}
		fn(ev)
	}
}

func wsIsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
