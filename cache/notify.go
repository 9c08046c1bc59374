package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/log"
)

// PostgresBroadcaster publishes invalidated namespaces with NOTIFY.
type PostgresBroadcaster struct {
	db      *sql.DB
	channel string
}

func NewPostgresBroadcaster(db *sql.DB, channel string) *PostgresBroadcaster {
	return &PostgresBroadcaster{
		db:      db,
		channel: channel,
	}
}

func (b *PostgresBroadcaster) Broadcast(ctx context.Context, namespace string) error {
	_, err := b.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", b.channel, namespace)
	return err
}

// Listener drops namespaces from the local tier when another instance
// invalidates them.
type Listener struct {
	dsn     string
	channel string
	local   *LocalCache

	listener *pq.Listener
	closeCh  chan struct{}
	doneCh   chan struct{}
}

func NewListener(dsn, channel string, local *LocalCache) *Listener {
	return &Listener{
		dsn:     dsn,
		channel: channel,
		local:   local,
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// report is a callback function of pq listener
func (l *Listener) report(et pq.ListenerEventType, err error) {
	switch et {
	case pq.ListenerEventConnected:
		log.Info("cache listener connection is established", log.SourcePG)
	case pq.ListenerEventReconnected:
		log.Info("cache listener connection is re-established", log.SourcePG)
	default:
		log.Warn("cache listener connection is disconnected", log.SourcePG, zap.Int("event", int(et)))
	}
	if err != nil {
		log.Error("cache listener error", log.SourcePG, zap.Error(err))
	}
}

// Start subscribes to the channel and handles notifications until Close.
func (l *Listener) Start() error {
	l.listener = pq.NewListener(l.dsn, 2*time.Second, 16*time.Second, l.report)
	if err := l.listener.Listen(l.channel); err != nil {
		l.listener.Close()
		return err
	}

	go func() {
		defer close(l.doneCh)
		for {
			select {
			case n := <-l.listener.Notify:
				l.handle(n)
			case <-time.After(90 * time.Second):
				go l.listener.Ping()
			case <-l.closeCh:
				l.listener.Close()
				return
			}
		}
	}()
	return nil
}

// handle drops the notified namespace. A nil notification follows a
// reconnect, when messages may have been missed, so everything is dropped.
func (l *Listener) handle(n *pq.Notification) {
	if n == nil {
		l.local.Purge()
		log.Info("local cache purged after reconnect", log.SourcePG)
		return
	}

	removed := l.local.RemovePrefix(n.Extra + ":")
	log.Debug("local cache namespace dropped", log.SourcePG,
		zap.String("namespace", n.Extra),
		zap.Int("removed", removed))
}

func (l *Listener) Close() {
	if l.listener == nil {
		return
	}
	close(l.closeCh)
	<-l.doneCh
}
