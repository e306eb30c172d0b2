package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiafolabi/nairamart-backend/api/middleware"
	"github.com/tobiafolabi/nairamart-backend/internal/notifications"
	"github.com/tobiafolabi/nairamart-backend/pkg/enums"
	"github.com/tobiafolabi/nairamart-backend/pkg/types"
)

type stubNotificationsService struct {
	listParams *notifications.ListParams
	readIDs    []uuid.UUID
	allReadFor []uuid.UUID
}

func (s *stubNotificationsService) List(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.listParams = &params
	return &notifications.ListResult{}, nil
}

func (s *stubNotificationsService) MarkRead(_ context.Context, _, notificationID uuid.UUID) error {
	s.readIDs = append(s.readIDs, notificationID)
	return nil
}

func (s *stubNotificationsService) MarkAllRead(_ context.Context, storeID uuid.UUID) (int64, error) {
	s.allReadFor = append(s.allReadFor, storeID)
	return 3, nil
}

func sellerRequest(method, target string, storeID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	actor := types.Actor{UserID: uuid.New(), StoreID: &storeID, Role: enums.MemberRoleSeller}
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestListNotificationsUsesActiveStore(t *testing.T) {
	svc := &stubNotificationsService{}
	storeID := uuid.New()

	req := sellerRequest(http.MethodGet, "/api/v1/notifications?limit=10&unreadOnly=true", storeID)
	rec := httptest.NewRecorder()
	ListNotifications(svc, testControllerLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.listParams)
	assert.Equal(t, storeID, svc.listParams.StoreID)
	assert.Equal(t, 10, svc.listParams.Limit)
	assert.True(t, svc.listParams.UnreadOnly)
}

func TestListNotificationsRequiresStoreContext(t *testing.T) {
	svc := &stubNotificationsService{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	actor := types.Actor{UserID: uuid.New(), Role: enums.MemberRoleBuyer}
	req = req.WithContext(middleware.WithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	ListNotifications(svc, testControllerLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, svc.listParams)
}

func TestMarkNotificationRead(t *testing.T) {
	svc := &stubNotificationsService{}
	storeID := uuid.New()
	notificationID := uuid.New()

	req := sellerRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", storeID)
	req = withURLParam(req, "notificationID", notificationID.String())
	rec := httptest.NewRecorder()
	MarkNotificationRead(svc, testControllerLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.readIDs, 1)
	assert.Equal(t, notificationID, svc.readIDs[0])
}

func TestMarkNotificationReadRejectsBadID(t *testing.T) {
	svc := &stubNotificationsService{}

	req := sellerRequest(http.MethodPost, "/api/v1/notifications/nope/read", uuid.New())
	req = withURLParam(req, "notificationID", "nope")
	rec := httptest.NewRecorder()
	MarkNotificationRead(svc, testControllerLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.readIDs)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	svc := &stubNotificationsService{}
	storeID := uuid.New()

	req := sellerRequest(http.MethodPost, "/api/v1/notifications/read-all", storeID)
	rec := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testControllerLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.allReadFor, 1)
	assert.Equal(t, storeID, svc.allReadFor[0])
}
