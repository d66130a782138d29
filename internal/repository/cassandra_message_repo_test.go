package repository

import (
	"testing"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
)

func TestParseConsistency(t *testing.T) {
	require.Equal(t, gocql.One, parseConsistency("one"))
	require.Equal(t, gocql.LocalOne, parseConsistency(" LOCAL_ONE "))
	require.Equal(t, gocql.Quorum, parseConsistency("QUORUM"))
	require.Equal(t, gocql.LocalQuorum, parseConsistency(""))
	require.Equal(t, gocql.LocalQuorum, parseConsistency("nonsense"))
}

func TestNewClusterUsesSerialConsistencyForInserts(t *testing.T) {
	cluster := newCluster(config.CassandraConfig{
		Hosts:       []string{"10.0.0.1", "10.0.0.2"},
		Consistency: "QUORUM",
		NumConns:    4,
		Username:    "chat",
		Password:    "pw",
	})

	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cluster.Hosts)
	require.Equal(t, gocql.Quorum, cluster.Consistency)
	require.Equal(t, gocql.LocalSerial, cluster.SerialConsistency)
	require.Equal(t, 4, cluster.NumConns)
	require.IsType(t, gocql.PasswordAuthenticator{}, cluster.Authenticator)
}

func TestCASOutcome(t *testing.T) {
	msg := &domain.Message{ID: "01HZX", RoomID: "room-1", Seq: 7}

	require.NoError(t, casOutcome(msg, true, map[string]interface{}{}))

	// Our own row came back: an earlier attempt already stored it.
	require.NoError(t, casOutcome(msg, false, map[string]interface{}{"room_id": "room-1", "seq": int64(7), "message_id": "01HZX"}))

	err := casOutcome(msg, false, map[string]interface{}{"room_id": "room-1", "seq": int64(7), "message_id": "01HZY"})
	require.ErrorIs(t, err, domain.ErrDuplicateSeq)

	require.ErrorIs(t, casOutcome(msg, false, nil), domain.ErrDuplicateSeq)
}
