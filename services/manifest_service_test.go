package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestManifestService_Generate(t *testing.T) {
	db := setupServiceDB(t)
	store := NewMockManifestStore()
	svc := NewManifestService(db, store, testLogger())
	svc.now = func() time.Time { return time.Date(2025, 7, 7, 18, 30, 0, 0, time.UTC) }
	deliveries := newDeliveryService(db)
	customer := testutil.CreateUser(t, db, models.RoleCustomer)
	courier := testutil.CreateCourier(t, db, models.CourierActive)
	ctx := context.Background()

	normal := testutil.CreateOrder(t, db, customer.ID, models.OrderStatusConfirmed)
	urgent := testutil.CreateCustomOrder(t, db, customer.ID, models.CustomStatusApproved, models.PaymentVerified)
	dropped := testutil.CreateOrder(t, db, customer.ID, models.OrderStatusConfirmed)

	_, err := deliveries.ScheduleDelivery(ctx, RegularRef(normal.ID), ScheduleInput{
		DeliveryDate: day("2025-07-08"), TimeSlot: "09:00-12:00", CourierID: &courier.ID,
	}, SystemActor)
	require.NoError(t, err)
	_, err = deliveries.ScheduleDelivery(ctx, CustomRef(urgent.CustomOrderID), ScheduleInput{
		DeliveryDate: day("2025-07-08"), TimeSlot: "13:00-17:00", Priority: models.PriorityUrgent,
	}, SystemActor)
	require.NoError(t, err)
	_, err = deliveries.ScheduleDelivery(ctx, RegularRef(dropped.ID), ScheduleInput{DeliveryDate: day("2025-07-08")}, SystemActor)
	require.NoError(t, err)
	_, err = deliveries.UpdateStatus(ctx, RegularRef(dropped.ID), DeliveryUpdate{Status: models.DeliveryCancelled}, SystemActor)
	require.NoError(t, err)

	manifest, err := svc.Generate(ctx, day("2025-07-08"))
	require.NoError(t, err)
	assert.Equal(t, "2025-07-08", manifest.Date)
	assert.Equal(t, 2, manifest.Deliveries)
	assert.True(t, strings.HasPrefix(manifest.Key, "manifests/2025-07-08/20250707T183000_"))
	assert.True(t, strings.HasSuffix(manifest.Key, ".xlsx"))
	assert.Contains(t, manifest.URL, manifest.Key)
	assert.Equal(t, manifest.GeneratedAt.Add(ManifestURLTTL), manifest.ExpiresAt)

	objects := store.Objects()
	require.Contains(t, objects, manifest.Key)

	f, err := excelize.OpenReader(bytes.NewReader(objects[manifest.Key]))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Manifest")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Delivery manifest 2025-07-08", rows[0][0])
	assert.Equal(t, "Order Number", rows[2][2])

	// Urgent first, cancelled deliveries left out
	assert.Equal(t, urgent.CustomOrderID, rows[3][2])
	assert.Equal(t, urgent.CustomerName, rows[3][3])
	assert.Equal(t, normal.OrderNumber, rows[4][2])
	assert.Equal(t, courier.Name, rows[4][8])
}

func TestManifestService_StorageDisabled(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewManifestService(db, nil, testLogger())

	_, err := svc.Generate(context.Background(), day("2025-07-08"))
	requireServiceError(t, err, KindUnavailable, "MANIFEST_STORAGE_DISABLED")
}

func TestBuildWorkbook_Empty(t *testing.T) {
	body, err := BuildWorkbook(day("2025-01-02"), nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Manifest"}, f.GetSheetList())
	rows, err := f.GetRows("Manifest")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[2], len(manifestHeader))
}

func TestMockManifestStore(t *testing.T) {
	store := NewMockManifestStore()
	ctx := context.Background()

	_, err := store.PresignedURL(ctx, "missing.xlsx", time.Minute)
	assert.Error(t, err)

	require.NoError(t, store.Put(ctx, "a.xlsx", []byte("data"), manifestContentType))
	url, err := store.PresignedURL(ctx, "a.xlsx", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "expires=60")

	store.Clear()
	assert.Empty(t, store.Objects())
}
