package notifier

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// EntriesChannel is the channel the entries insert trigger notifies on.
const EntriesChannel = "entries_inserted"

type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// pgxConnect is a seam for tests.
var pgxConnect = func(ctx context.Context, dsn string) (listenConn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// PostgresTransport listens for rows announced by the insert trigger. Each
// subscription holds one dedicated connection.
type PostgresTransport struct {
	dsn string
	log logging.Logger
}

func NewPostgresTransport(dsn string, l logging.Logger) *PostgresTransport {
	return &PostgresTransport{dsn: dsn, log: l.With("module", "notifier", "transport", "postgres")}
}

func (t *PostgresTransport) Name() string { return "postgres" }

func (t *PostgresTransport) Subscribe(ctx context.Context, deliver func(models.Entry)) (Subscription, error) {
	conn, err := pgxConnect(ctx, t.dsn)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+EntriesChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &pgSubscription{conn: conn, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					t.log.Error(ctx, "listen failed", "error", err)
				}
				return
			}
			e, err := decodeEntry([]byte(n.Payload))
			if err != nil {
				t.log.Warn(ctx, "dropping notification", "error", err)
				continue
			}
			deliver(e)
		}
	}()

	return sub, nil
}

type pgSubscription struct {
	conn   listenConn
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

// Close stops listening and releases the connection.
func (s *pgSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.err = s.conn.Close(context.Background())
	})
	return s.err
}
