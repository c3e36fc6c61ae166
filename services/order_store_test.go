package services

import (
	"testing"

	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderRef(t *testing.T) {
	tests := []struct {
		name      string
		orderType string
		id        string
		want      OrderRef
		wantField string
	}{
		{"regular id", "regular", "42", OrderRef{Type: models.OrderTypeRegular, ID: "42"}, ""},
		{"empty type defaults to regular", "", " 7 ", OrderRef{Type: models.OrderTypeRegular, ID: "7"}, ""},
		{"leading zeros are canonicalized", "regular", "007", OrderRef{Type: models.OrderTypeRegular, ID: "7"}, ""},
		{"custom id is uppercased", "custom_order", "custom-ab12-cd34", OrderRef{Type: models.OrderTypeCustom, ID: "CUSTOM-AB12-CD34"}, ""},
		{"unknown type", "custom_design", "1", OrderRef{}, "order_type"},
		{"missing id", "regular", "  ", OrderRef{}, "order_id"},
		{"zero regular id", "regular", "0", OrderRef{}, "order_id"},
		{"non numeric regular id", "regular", "CUSTOM-AB12-CD34", OrderRef{}, "order_id"},
		{"numeric custom id", "custom_order", "12", OrderRef{}, "order_id"},
		{"malformed custom id", "custom_order", "CUSTOM-AB1-CD34", OrderRef{}, "order_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrderRef(tt.orderType, tt.id)
			if tt.wantField != "" {
				requireServiceError(t, err, KindValidation, "VALIDATION_ERROR")
				se, _ := AsError(err)
				assert.Contains(t, se.Fields, tt.wantField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindOrder_TypesHaveSeparateIdentitySpaces(t *testing.T) {
	db := setupServiceDB(t)
	customer := testutil.CreateUser(t, db, models.RoleCustomer)
	regular := testutil.CreateOrder(t, db, customer.ID, models.OrderStatusConfirmed)
	custom := testutil.CreateCustomOrder(t, db, customer.ID, models.CustomStatusApproved, models.PaymentVerified)

	snap, err := FindOrder(db, RegularRef(regular.ID), false)
	require.NoError(t, err)
	assert.Equal(t, regular.OrderNumber, snap.OrderNumber)
	assert.Equal(t, models.OrderTypeRegular, snap.Ref.Type)

	snap, err = FindOrder(db, CustomRef(custom.CustomOrderID), true)
	require.NoError(t, err)
	assert.Equal(t, custom.CustomOrderID, snap.OrderNumber)
	assert.Equal(t, models.PaymentVerified, snap.PaymentStatus)

	// A custom id never resolves in the regular table and vice versa
	_, err = FindOrder(db, OrderRef{Type: models.OrderTypeRegular, ID: custom.CustomOrderID}, false)
	requireServiceError(t, err, KindNotFound, "ORDER_NOT_FOUND")

	_, err = FindOrder(db, OrderRef{Type: models.OrderTypeCustom, ID: RegularRef(regular.ID).ID}, false)
	requireServiceError(t, err, KindNotFound, "ORDER_NOT_FOUND")
}

func TestOrderStoreList(t *testing.T) {
	db := setupServiceDB(t)
	alice := testutil.CreateUser(t, db, models.RoleCustomer)
	bob := testutil.CreateUser(t, db, models.RoleCustomer)
	first := testutil.CreateOrder(t, db, alice.ID, models.OrderStatusPending)
	testutil.CreateOrder(t, db, bob.ID, models.OrderStatusConfirmed)
	third := testutil.CreateOrder(t, db, alice.ID, models.OrderStatusConfirmed)

	snaps, err := StoreFor(models.OrderTypeRegular).List(db, OrderFilter{UserID: &alice.ID})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, third.OrderNumber, snaps[0].OrderNumber, "newest first")

	snaps, err = StoreFor(models.OrderTypeRegular).List(db, OrderFilter{Status: models.OrderStatusPending})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, first.OrderNumber, snaps[0].OrderNumber)

	snaps, err = StoreFor(models.OrderTypeRegular).List(db, OrderFilter{IDs: []string{RegularRef(third.ID).ID}})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
}

func TestOrderSnapshotRules(t *testing.T) {
	delivered := models.DeliveryDelivered

	tests := []struct {
		name        string
		snap        OrderSnapshot
		deliverable bool
		cancellable bool
	}{
		{
			name:        "pending regular order",
			snap:        OrderSnapshot{Ref: OrderRef{Type: models.OrderTypeRegular}, Status: models.OrderStatusPending},
			cancellable: true,
		},
		{
			name:        "confirmed regular order",
			snap:        OrderSnapshot{Ref: OrderRef{Type: models.OrderTypeRegular}, Status: models.OrderStatusConfirmed},
			deliverable: true,
			cancellable: true,
		},
		{
			name: "delivered regular order",
			snap: OrderSnapshot{
				Ref:            OrderRef{Type: models.OrderTypeRegular},
				Status:         models.OrderStatusConfirmed,
				DeliveryStatus: &delivered,
			},
			deliverable: true,
		},
		{
			name: "cancelled regular order",
			snap: OrderSnapshot{Ref: OrderRef{Type: models.OrderTypeRegular}, Status: models.OrderStatusCancelled},
		},
		{
			name: "approved custom order awaiting payment",
			snap: OrderSnapshot{
				Ref:           OrderRef{Type: models.OrderTypeCustom},
				Status:        models.CustomStatusApproved,
				PaymentStatus: models.PaymentPending,
			},
			cancellable: true,
		},
		{
			name: "approved and paid custom order",
			snap: OrderSnapshot{
				Ref:           OrderRef{Type: models.OrderTypeCustom},
				Status:        models.CustomStatusApproved,
				PaymentStatus: models.PaymentVerified,
			},
			deliverable: true,
			cancellable: true,
		},
		{
			name: "rejected custom order",
			snap: OrderSnapshot{Ref: OrderRef{Type: models.OrderTypeCustom}, Status: models.CustomStatusRejected},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.deliverable, tt.snap.Deliverable())
			assert.Equal(t, tt.cancellable, tt.snap.Cancellable())
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	db := setupServiceDB(t)
	user := testutil.CreateUser(t, db, models.RoleCustomer)

	dup := models.User{Auth0ID: user.Auth0ID, Name: "Other", Email: "other@example.com", Role: models.RoleCustomer}
	err := db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
	assert.False(t, IsDuplicateKey(nil))
}
