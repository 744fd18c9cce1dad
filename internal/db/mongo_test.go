package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/qr-attendance/internal/models"
)

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo("mongodb://bad:uri")
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}

	_, err = ConnectMongo("")
	assert.Error(t, err)
}

func TestInsertAttempt_NilCollection(t *testing.T) {
	coll := &MongoCollection{Collection: nil}
	err := coll.InsertAttempt(context.Background(), models.Attempt{})
	assert.Error(t, err)

	_, err = coll.RecentAttempts(context.Background(), "", 10)
	assert.Error(t, err)
}

// Integration test (requires running MongoDB)
func TestAttempts_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	client, err := ConnectMongo(uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	defer client.Disconnect(context.Background())

	coll := NewMongoCollection(client, "test_qr_attendance")
	ctx := context.Background()
	require.NoError(t, coll.Collection.Drop(ctx))

	base := time.Now().Add(-time.Minute)
	for i, emp := range []string{"EMP10001", "EMP10002", "EMP10001"} {
		err := coll.InsertAttempt(ctx, models.Attempt{
			CycleID:    emp + "-cycle",
			State:      "submitted",
			EmployeeID: emp,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	all, err := coll.RecentAttempts(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))

	mine, err := coll.RecentAttempts(ctx, "EMP10001", 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "EMP10001", mine[0].EmployeeID)
	assert.False(t, mine[0].ID.IsZero())
}
