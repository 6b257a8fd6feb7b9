package grpcx

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cwrk-planet/rendezvous/internal/domain"
	"github.com/cwrk-planet/rendezvous/internal/matchmaker"
)

type counter int

func (c counter) Len() int { return int(c) }

func newAdmin(t *testing.T) (*AdminClient, *matchmaker.Matchmaker) {
	t.Helper()
	engine := matchmaker.New(matchmaker.DefaultConfig(), nil)

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(NewServer(engine, counter(3)), nil)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewAdminClient(conn), engine
}

func enqueue(t *testing.T, m *matchmaker.Matchmaker, id, origin string) {
	t.Helper()
	_, err := m.Enqueue(context.Background(), matchmaker.JoinRequest{
		ID:     domain.ParticipantID(id),
		Origin: origin,
	})
	require.NoError(t, err)
}

func TestAdmin_GetStats(t *testing.T) {
	client, engine := newAdmin(t)
	enqueue(t, engine, "a", "10.0.0.1")
	enqueue(t, engine, "b", "10.0.0.2")
	enqueue(t, engine, "c", "10.0.0.3")

	st, err := client.GetStats(context.Background())
	require.NoError(t, err)

	fields := st.GetFields()
	assert.Equal(t, float64(3), fields["participants"].GetNumberValue())
	assert.Equal(t, float64(2), fields["paired"].GetNumberValue())
	assert.Equal(t, float64(1), fields["queued"].GetNumberValue())
	assert.Equal(t, float64(1), fields["matches"].GetNumberValue())
	assert.Equal(t, float64(3), fields["wsConnections"].GetNumberValue())
}

func TestAdmin_BanLifecycle(t *testing.T) {
	client, engine := newAdmin(t)
	ctx := context.Background()
	enqueue(t, engine, "a", "10.0.0.1")

	banned, err := client.IsBanned(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, client.Ban(ctx, "a", "", "spam"))
	banned, err = client.IsBanned(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, banned)
	_, err = engine.Get("a")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, client.Ban(ctx, "", "192.0.2.7", ""))
	list, err := client.ListBans(ctx)
	require.NoError(t, err)
	require.Len(t, list.GetValues(), 2)
	assert.Equal(t, "banned by operator", list.GetValues()[1].GetStructValue().GetFields()["reason"].GetStringValue())

	ok, err := client.Unban(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.Unban(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdmin_Errors(t *testing.T) {
	client, _ := newAdmin(t)
	ctx := context.Background()

	_, err := client.IsBanned(ctx, " ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = client.Ban(ctx, "", "", "x")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = client.Ban(ctx, "ghost", "", "x")
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = client.Disconnect(ctx, "ghost")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestAdmin_Disconnect(t *testing.T) {
	client, engine := newAdmin(t)
	enqueue(t, engine, "a", "")
	enqueue(t, engine, "b", "")

	require.NoError(t, client.Disconnect(context.Background(), "a"))
	p, err := engine.Get("b")
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaiting, p.State)
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.FailedPrecondition, status.Code(toStatus(domain.ErrNotPaired)))
	assert.Equal(t, codes.PermissionDenied, status.Code(toStatus(domain.ErrBanned)))
	assert.Equal(t, codes.Internal, status.Code(toStatus(assert.AnError)))
}
