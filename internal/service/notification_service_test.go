package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/internal/repository"
)

func TestNotificationPublishFansOutToSubscribers(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validator.New(), testLogger())

	stream, cancel := svc.Subscribe(7)
	defer cancel()
	other, cancelOther := svc.Subscribe(8)
	defer cancelOther()

	published, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  7,
		Title:   "<b>Document approved</b>",
		Message: "Nice <script>alert(1)</script>work",
		Type:    "document_feedback",
	})
	require.NoError(t, err)
	require.Equal(t, "Document approved", published.Title)
	require.NotContains(t, published.Message, "script")

	select {
	case got := <-stream:
		require.Equal(t, published.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected notification on subscriber stream")
	}

	select {
	case got := <-other:
		t.Fatalf("unexpected notification for another user: %+v", got)
	default:
	}

	cancel()
	_, open := <-stream
	require.False(t, open)
	cancel()
}

func TestNotificationRecipientOperations(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validator.New(), testLogger())
	ctx := context.Background()
	owner := Actor{ID: 3, Role: models.RoleStudent}
	stranger := Actor{ID: 4, Role: models.RoleStudent}

	var ids []uint
	for _, title := range []string{"One", "Two", "Three"} {
		n, err := svc.Publish(ctx, dto.NotificationCreateRequest{UserID: owner.ID, Title: title, Type: "feedback"})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	unread, err := svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, int64(3), unread)

	_, err = svc.MarkRead(ctx, stranger, ids[0])
	require.ErrorIs(t, err, ErrNotificationNotFound)

	read, err := svc.MarkRead(ctx, owner, ids[0])
	require.NoError(t, err)
	require.True(t, read.IsRead)
	_, err = svc.MarkRead(ctx, owner, ids[0])
	require.NoError(t, err)

	list, err := svc.List(ctx, owner, dto.NotificationListRequest{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, int64(2), list.Unread)

	updated, err := svc.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated)

	unread, err = svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	require.Zero(t, unread)

	_, err = svc.List(ctx, Actor{}, dto.NotificationListRequest{})
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestNotificationCrossNodeEventsSkipOwnNode(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validator.New(), testLogger()).(*notificationService)

	stream, cancel := svc.Subscribe(11)
	defer cancel()

	svc.handleEvent([]byte(`{"source":"` + svc.nodeID + `","notification":{"id":1,"user_id":11,"title":"own"}}`))
	svc.handleEvent([]byte(`{"source":"node-b","notification":{"id":2,"user_id":11,"title":"remote"}}`))
	svc.handleEvent([]byte(`not json`))

	select {
	case got := <-stream:
		require.Equal(t, uint(2), got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected remote notification")
	}
	select {
	case got := <-stream:
		t.Fatalf("unexpected extra notification: %+v", got)
	default:
	}
}

func TestNotificationRedisFanOutAcrossNodes(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	db := setupTestDB(t)
	repo := repository.NewNotificationRepository(db)
	newNode := func() NotificationService {
		client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewNotificationService(repo, client, "projtrack-test", nil, validator.New(), testLogger())
	}
	nodeA, nodeB := newNode(), newNode()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	require.Eventually(t, func() bool {
		return mini.PubSubNumSub("projtrack-test:notifications")["projtrack-test:notifications"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	local, cancelLocal := nodeA.Subscribe(21)
	defer cancelLocal()
	remote, cancelRemote := nodeB.Subscribe(21)
	defer cancelRemote()

	published, err := nodeA.Publish(ctx, dto.NotificationCreateRequest{UserID: 21, Title: "Milestone approved", Type: models.NotificationTypeMilestoneUpdate})
	require.NoError(t, err)

	for name, stream := range map[string]<-chan dto.NotificationResponse{"local": local, "remote": remote} {
		select {
		case got := <-stream:
			require.Equal(t, published.ID, got.ID, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s subscriber did not receive the notification", name)
		}
	}

	// node A must not deliver its own relayed copy a second time
	select {
	case got := <-local:
		t.Fatalf("duplicate delivery on origin node: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotificationRemoteCopiesDeliverOnce(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	db := setupTestDB(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	defer client.Close()
	node := NewNotificationService(repository.NewNotificationRepository(db), client, "projtrack-dup", nil, validator.New(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	node.Start(ctx)
	require.Eventually(t, func() bool {
		return mini.PubSubNumSub("projtrack-dup:notifications")["projtrack-dup:notifications"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	stream, cancelStream := node.Subscribe(31)
	defer cancelStream()

	// a peer configured with both brokers can hand the same frame over twice
	frame := `{"source":"node-b","notification":{"id":77,"user_id":31,"title":"Document approved"}}`
	mini.Publish("projtrack-dup:notifications", frame)
	mini.Publish("projtrack-dup:notifications", frame)
	mini.Publish("projtrack-dup:notifications", `{"source":"node-b","notification":{"id":78,"user_id":31,"title":"Milestone approved"}}`)

	var got []uint
	for len(got) < 2 {
		select {
		case n := <-stream:
			got = append(got, n.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %v, expected two distinct notifications", got)
		}
	}
	require.Equal(t, []uint{77, 78}, got)
	select {
	case n := <-stream:
		t.Fatalf("duplicate delivery: %+v", n)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotificationRelayUsesSingleBroker(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	cases := []struct {
		name string
		svc  *notificationService
		want relayBroker
	}{
		{name: "none", svc: &notificationService{}, want: relayNone},
		{name: "redis only", svc: &notificationService{redis: client, redisChannel: "c"}, want: relayRedis},
		{name: "nats preferred", svc: &notificationService{redis: client, redisChannel: "c", nats: &nats.Conn{}, natsSubject: "s"}, want: relayNATS},
		{name: "nats without subject", svc: &notificationService{redis: client, redisChannel: "c", nats: &nats.Conn{}}, want: relayRedis},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.svc.relayTarget())
		})
	}
}

func TestRecentIDsEvictsOldest(t *testing.T) {
	recent := newRecentIDs(2)
	require.True(t, recent.observe(1))
	require.False(t, recent.observe(1))
	require.True(t, recent.observe(2))
	require.True(t, recent.observe(3))
	require.True(t, recent.observe(1))
	require.False(t, recent.observe(3))
}

func TestNotificationPublishStoresPlainText(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validator.New(), testLogger())

	published, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  5,
		Title:   `R&D "kickoff"`,
		Message: `Bring A & B <i>notes</i> and 1 < 2`,
		Type:    models.NotificationTypeFeedback,
	})
	require.NoError(t, err)
	require.Equal(t, `R&D "kickoff"`, published.Title)
	require.Equal(t, `Bring A & B notes and 1 < 2`, published.Message)

	var stored models.Notification
	require.NoError(t, db.First(&stored, published.ID).Error)
	require.Equal(t, published.Message, stored.Message)
}
