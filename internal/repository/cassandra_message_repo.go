package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const (
	cqlCreateKeyspace = `CREATE KEYSPACE IF NOT EXISTS %s
		WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`

	cqlCreateMessages = `CREATE TABLE IF NOT EXISTS messages_by_room (
		room_id    text,
		seq        bigint,
		message_id text,
		sender_id  text,
		content    text,
		created_at timestamp,
		PRIMARY KEY ((room_id), seq)
	) WITH CLUSTERING ORDER BY (seq ASC)`

	cqlInsertMessage = `INSERT INTO messages_by_room (
			room_id, seq, message_id, sender_id, content, created_at
		) VALUES (?, ?, ?, ?, ?, ?) IF NOT EXISTS`

	cqlLastSeq = `SELECT seq FROM messages_by_room WHERE room_id = ? ORDER BY seq DESC LIMIT 1`

	cqlListMessages = `SELECT message_id, room_id, seq, sender_id, content, created_at
		FROM messages_by_room
		WHERE room_id = ? AND seq > ?
		ORDER BY seq ASC`
)

// CassandraMessageRepository stores each room's log in one partition,
// clustered by sequence number. Inserts are lightweight transactions so
// two writers can never both claim the same (room, seq).
type CassandraMessageRepository struct {
	session  *gocql.Session
	pageSize int
}

// NewCassandraMessageRepository connects to the cluster and, when
// configured, creates the keyspace and table.
func NewCassandraMessageRepository(cfg config.CassandraConfig) (*CassandraMessageRepository, error) {
	if cfg.CreateSchema {
		if err := ensureKeyspace(cfg); err != nil {
			return nil, err
		}
	}

	cluster := newCluster(cfg)
	cluster.Keyspace = cfg.Keyspace

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	if cfg.CreateSchema {
		if err := session.Query(cqlCreateMessages).Exec(); err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to create messages table: %w", err)
		}
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	return &CassandraMessageRepository{session: session, pageSize: pageSize}, nil
}

// Append inserts msg if its (room, seq) slot is free.
func (r *CassandraMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	existing := make(map[string]interface{})
	applied, err := r.session.Query(cqlInsertMessage,
		msg.RoomID,
		msg.Seq,
		msg.ID,
		msg.SenderID,
		msg.Content,
		msg.CreatedAt,
	).WithContext(ctx).MapScanCAS(existing)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, msg.RoomID).Int64(log.FieldSeq, msg.Seq).Msg("failed to append message")
		return domain.StorageError("append message", err)
	}
	return casOutcome(msg, applied, existing)
}

// casOutcome interprets an IF NOT EXISTS result. A retried insert that
// already landed reports our own row back and counts as stored.
func casOutcome(msg *domain.Message, applied bool, existing map[string]interface{}) error {
	if applied {
		return nil
	}
	if id, _ := existing["message_id"].(string); id == msg.ID {
		return nil
	}
	return domain.ErrDuplicateSeq
}

// LastSeq reads the head of the room's partition.
func (r *CassandraMessageRepository) LastSeq(ctx context.Context, roomID string) (int64, error) {
	var seq int64
	err := r.session.Query(cqlLastSeq, roomID).WithContext(ctx).Scan(&seq)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return 0, nil
		}
		return 0, domain.StorageError("last seq", err)
	}
	return seq, nil
}

// List pages through the partition in clustering order.
func (r *CassandraMessageRepository) List(ctx context.Context, roomID string, afterSeq int64, limit int) ([]domain.Message, error) {
	stmt := cqlListMessages
	args := []interface{}{roomID, afterSeq}
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}

	iter := r.session.Query(stmt, args...).WithContext(ctx).PageSize(r.pageSize).Iter()

	messages := make([]domain.Message, 0)
	var (
		msg       domain.Message
		createdAt time.Time
	)
	for iter.Scan(&msg.ID, &msg.RoomID, &msg.Seq, &msg.SenderID, &msg.Content, &createdAt) {
		msg.CreatedAt = createdAt.UTC()
		messages = append(messages, msg)
		msg = domain.Message{}
	}

	if err := iter.Close(); err != nil {
		return nil, domain.StorageError("list messages", err)
	}
	return messages, nil
}

// Close closes the Cassandra session.
func (r *CassandraMessageRepository) Close() error {
	r.session.Close()
	return nil
}

func ensureKeyspace(cfg config.CassandraConfig) error {
	session, err := newCluster(cfg).CreateSession()
	if err != nil {
		return fmt.Errorf("failed to create cassandra session: %w", err)
	}
	defer session.Close()

	rf := cfg.ReplicationFactor
	if rf <= 0 {
		rf = 1
	}
	if err := session.Query(fmt.Sprintf(cqlCreateKeyspace, cfg.Keyspace, rf)).Exec(); err != nil {
		return fmt.Errorf("failed to create keyspace %s: %w", cfg.Keyspace, err)
	}
	return nil
}

func newCluster(cfg config.CassandraConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}
	return cluster
}

// parseConsistency converts a string consistency level to gocql.Consistency.
func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.LocalQuorum
	}
}
