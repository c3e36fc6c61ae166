package services

import (
	"io"
	"testing"
	"time"

	"github.com/sevenfour/order-workflow-api/models"
	"github.com/sevenfour/order-workflow-api/tests/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setupServiceDB(t *testing.T) *gorm.DB {
	return testutil.SetupTestDB(t)
}

// requireServiceError asserts err is a service error with the given code
func requireServiceError(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	se, ok := AsError(err)
	require.True(t, ok, "expected a service error, got %v", err)
	require.Equal(t, kind, se.Kind, "unexpected kind for %v", err)
	require.Equal(t, code, se.Code)
}

func day(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func statusPtr(s models.DeliveryStatus) *models.DeliveryStatus {
	return &s
}
