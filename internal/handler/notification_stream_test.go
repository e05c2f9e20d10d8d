package handler_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/handler"
	"github.com/noah-isme/projtrack-api/internal/models"
	"github.com/noah-isme/projtrack-api/pkg/notifyclient"
)

func startServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()
	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(2 * time.Second)
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})

	time.Sleep(50 * time.Millisecond)
	return "http://" + listener.Addr().String()
}

// inviteMate has the student create a team and invite the mate, which
// notifies the mate.
func (h *harness) inviteMate() {
	h.t.Helper()
	resp := h.do(h.student, http.MethodPost, "/api/v1/teams", dto.TeamCreateRequest{Name: "Rocket"})
	require.Equal(h.t, fiber.StatusCreated, resp.StatusCode)
	team := decodeEnvelope[dto.TeamResponse](h.t, resp).Data

	resp = h.do(h.student, http.MethodPost, fmt.Sprintf("/api/v1/teams/%d/invites", team.ID), dto.TeamInviteRequest{Email: h.mate.Email})
	require.Equal(h.t, fiber.StatusCreated, resp.StatusCode)
}

func TestNotificationSocketPushesFrames(t *testing.T) {
	h := newHarness(t)
	baseURL := startServer(t, h.app)
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/notifications/ws?access_token=" + h.token(h.mate)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	_, resp, err := dialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/api/v1/notifications/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)
	h.inviteMate()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame handler.StreamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "notification", frame.Event)
	require.NotNil(t, frame.Data)
	require.Equal(t, h.mate.ID, frame.Data.UserID)
	require.Equal(t, models.NotificationTypeTeamInvite, frame.Data.Type)
}

func TestNotificationSSEStreamsEvents(t *testing.T) {
	h := newHarness(t)
	baseURL := startServer(t, h.app)

	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+h.token(h.mate))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimSpace(line)
		}
	}()

	awaitLine := func(prefix string) string {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed before %q", prefix)
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	awaitLine(": keep-alive")
	h.inviteMate()
	awaitLine("event: notification")
	data := awaitLine("data:")
	require.Contains(t, data, `"type":"`+models.NotificationTypeTeamInvite+`"`)
}

func TestNotifyClientReceivesPushFromAPI(t *testing.T) {
	h := newHarness(t)
	baseURL := startServer(t, h.app)

	received := make(chan notifyclient.Notification, 4)
	client, err := notifyclient.New(notifyclient.Config{
		BaseURL:      baseURL,
		Token:        h.token(h.mate),
		PollInterval: 20 * time.Millisecond,
	}, func(n notifyclient.Notification) { received <- n }, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	h.inviteMate()

	select {
	case n := <-received:
		require.Equal(t, "Team invitation", n.Title)
		require.Equal(t, h.mate.ID, n.UserID)
	case <-time.After(3 * time.Second):
		t.Fatal("notification not delivered")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Empty(t, received)
}
