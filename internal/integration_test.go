package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"campus-queue-backend/internal/api"
	"campus-queue-backend/internal/dispatch"
	"campus-queue-backend/internal/gate"
	"campus-queue-backend/internal/model"
	"campus-queue-backend/internal/realtime"
	"campus-queue-backend/internal/snapshot"
	"campus-queue-backend/internal/store"
)

const testSecret = "integration-test-secret"

func setupServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Queue{}, &model.Ticket{}, &model.PushSubscription{}))
	require.NoError(t, db.Create(&model.Queue{
		ID: 1, Name: "Registrar", Location: "Admin Building", OperatorID: "op-1",
		IsActive: true, NextSequence: 1,
	}).Error)

	appStore := store.NewGormStore(db)
	builder := snapshot.NewBuilder(appStore)
	hub := realtime.NewHub(builder)
	dispatcher := dispatch.NewService(appStore, store.ScopeQueue, hub, nil)
	handler := api.NewHandler(appStore, dispatcher, builder, hub, gate.New(appStore),
		&webpush.Options{VAPIDPublicKey: "test-public-key", VAPIDPrivateKey: "test-private-key"})

	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:       testSecret,
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTL:        50 * time.Millisecond,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, db
}

func signToken(t *testing.T, sub, role, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"role":  role,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doPost(t *testing.T, server *httptest.Server, path, token string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func readWS(t *testing.T, conn *websocket.Conn) snapshot.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var snap snapshot.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	return snap
}

func TestCounterLifecycle(t *testing.T) {
	server, _ := setupServer(t)
	operator := signToken(t, "op-1", "operator", "op1@campus.edu")

	// A viewer subscribes before anyone arrives and receives the empty
	// snapshot immediately.
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/queues/1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	snap := readWS(t, conn)
	assert.Equal(t, "ACTIVE", snap.Queue.Status)
	assert.Empty(t, snap.Tickets)

	// Three students check in; each mutation pushes a fresh snapshot.
	for i := 1; i <= 3; i++ {
		user := signToken(t, fmt.Sprintf("student-%d", i), "user", fmt.Sprintf("s%d@campus.edu", i))
		code, body := doPost(t, server, "/api/queues/1/checkin", user)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, body["success"])

		snap = readWS(t, conn)
		assert.Equal(t, i, snap.Stats.TotalWaiting)
	}
	assert.Equal(t, "T-001", snap.Tickets[0].Label)

	// Serve the first ticket, skip it, serve the second.
	code, body := doPost(t, server, "/api/operator/queues/1/next", operator)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	snap = readWS(t, conn)
	assert.Equal(t, 1, snap.Stats.TotalServing)

	code, _ = doPost(t, server, "/api/operator/queues/1/skip", operator)
	require.Equal(t, http.StatusOK, code)
	readWS(t, conn)

	code, body = doPost(t, server, "/api/operator/queues/1/next", operator)
	require.Equal(t, http.StatusOK, code)
	ticket := body["ticket"].(map[string]any)
	assert.Equal(t, float64(2), ticket["seq"])
	readWS(t, conn)

	code, _ = doPost(t, server, "/api/operator/queues/1/complete", operator)
	require.Equal(t, http.StatusOK, code)
	readWS(t, conn)

	// Pause: the blocked check-in produces no snapshot.
	code, _ = doPost(t, server, "/api/operator/queues/1/pause", operator)
	require.Equal(t, http.StatusOK, code)
	snap = readWS(t, conn)
	assert.Equal(t, "PAUSED", snap.Queue.Status)

	late := signToken(t, "student-9", "user", "")
	code, body = doPost(t, server, "/api/queues/1/checkin", late)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "paused", body["reason"])

	code, _ = doPost(t, server, "/api/operator/queues/1/resume", operator)
	require.Equal(t, http.StatusOK, code)
	snap = readWS(t, conn)

	assert.Equal(t, "ACTIVE", snap.Queue.Status)
	assert.Equal(t, 1, snap.Stats.TotalWaiting)
	assert.Equal(t, 0, snap.Stats.TotalServing)
	assert.Equal(t, 2, snap.Stats.TotalCompleted)
	assert.Equal(t, 4, snap.Queue.NextSequence)

	// The REST snapshot agrees with the websocket.
	resp, err := http.Get(server.URL + "/api/queues/1/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var restSnap snapshot.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&restSnap))
	assert.Equal(t, snap.Stats, restSnap.Stats)
}

func TestOperatorAuthorization(t *testing.T) {
	server, _ := setupServer(t)

	// No token at all.
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/operator/queues/1/next", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A token for a different operator.
	foreign := signToken(t, "op-2", "operator", "")
	code, _ := doPost(t, server, "/api/operator/queues/1/next", foreign)
	assert.Equal(t, http.StatusForbidden, code)

	// Admins act on queues they do not own.
	admin := signToken(t, "boss", gate.RoleAdmin, "")
	code, body := doPost(t, server, "/api/operator/queues/1/next", admin)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "empty", body["reason"])

	// Unknown queue.
	owner := signToken(t, "op-1", "operator", "")
	code, _ = doPost(t, server, "/api/operator/queues/42/next", owner)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOperatorQueueListing(t *testing.T) {
	server, db := setupServer(t)
	require.NoError(t, db.Create(&model.Queue{
		ID: 2, Name: "Cashier", Location: "Admin Building", OperatorID: "op-2",
		IsActive: true, NextSequence: 1,
	}).Error)

	listQueues := func(token string) []map[string]any {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/api/operator/queues", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var queues []map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&queues))
		return queues
	}

	owned := listQueues(signToken(t, "op-1", "operator", ""))
	require.Len(t, owned, 1)
	assert.Equal(t, "Registrar", owned[0]["name"])

	all := listQueues(signToken(t, "boss", gate.RoleAdmin, ""))
	assert.Len(t, all, 2)
}

func TestPushSubscriptionRoundTrip(t *testing.T) {
	server, _ := setupServer(t)

	payload := map[string]any{
		"endpoint":          "https://push.example.com/sub-1",
		"p256dh":            "p256dh-key",
		"auth":              "auth-key",
		"subscribed_queues": []int64{1},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/api/subscriptions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	// PUT route, not POST.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/subscriptions", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/subscriptions?endpoint=https://push.example.com/sub-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string][]int64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []int64{1}, got["subscribed_queues"])

	resp, err = http.Get(server.URL + "/api/vapid_public_key")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSnapshotEndpointUnknownQueue(t *testing.T) {
	server, _ := setupServer(t)
	resp, err := http.Get(server.URL + "/api/queues/42/snapshot")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
