package gate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"campus-queue-backend/internal/model"
	"campus-queue-backend/internal/store"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Queue{}, &model.Ticket{}, &model.PushSubscription{}))
	require.NoError(t, db.Create(&model.Queue{
		ID: 1, Name: "Registrar", OperatorID: "op-1", IsActive: true, NextSequence: 1,
	}).Error)
	return New(store.NewGormStore(db))
}

func TestAuthorize(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		queueID int64
		id      Identity
		allowed bool
		reason  Reason
	}{
		{"owner", 1, Identity{Subject: "op-1", Role: "operator"}, true, ""},
		{"admin on any queue", 1, Identity{Subject: "boss", Role: RoleAdmin}, true, ""},
		{"foreign operator", 1, Identity{Subject: "op-2", Role: "operator"}, false, ReasonForbidden},
		{"anonymous", 1, Identity{}, false, ReasonUnauthenticated},
		{"unknown queue", 99, Identity{Subject: "op-1", Role: "operator"}, false, ReasonNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := g.Authorize(ctx, tc.queueID, tc.id)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.reason, decision.Reason)
			if tc.allowed {
				require.NotNil(t, decision.Queue)
				assert.Equal(t, tc.queueID, decision.Queue.ID)
			}
		})
	}
}
