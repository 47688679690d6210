package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
	"github.com/jvaguiar05/smart-park-system/pkg/repositories"
)

func TestCatalogService_ListsAreScopedToMemberships(t *testing.T) {
	f := newFixture()
	other := f.w.addClient("other", models.OnboardingActive)
	f.w.addEstablishment(other, "Elsewhere")
	svc := f.catalogService()
	ctx := context.Background()

	page, err := svc.ListEstablishments(ctx, f.member(models.RoleClientMember, nil), models.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	for _, e := range page.Items {
		assert.Equal(t, f.clientID, e.ClientID)
	}

	page, err = svc.ListEstablishments(ctx, f.admin(), models.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	_, err = svc.ListEstablishments(ctx, f.stranger(), models.ListOptions{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCatalogService_SearchTermIsNormalized(t *testing.T) {
	f := newFixture()
	svc := f.catalogService()

	page, err := svc.ListEstablishments(context.Background(), f.admin(), models.ListOptions{Search: "  north\x00 ", PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, models.MaxPageSize, page.PageSize)
}

func TestCatalogService_EstablishmentLifecycle(t *testing.T) {
	f := newFixture()
	svc := f.catalogService()
	ctx := context.Background()
	clientAdmin := f.member(models.RoleClientAdmin, nil)
	estAdmin := f.member(models.RoleClientEstablishmentAdmin, &f.est1)

	_, err := svc.CreateEstablishment(ctx, estAdmin, f.clientID, EstablishmentInput{Name: "East"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "creating establishments needs client scope")

	est, err := svc.CreateEstablishment(ctx, clientAdmin, f.clientID, EstablishmentInput{Name: "East"})
	require.NoError(t, err)
	assert.Equal(t, f.clientID, est.ClientID)

	_, err = svc.CreateEstablishment(ctx, clientAdmin, 999, EstablishmentInput{Name: "Nowhere"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateEstablishment(ctx, clientAdmin, f.clientID, EstablishmentInput{Name: ""})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	updated, err := svc.UpdateEstablishment(ctx, estAdmin, f.est1, EstablishmentInput{Name: "North Mall II"})
	require.NoError(t, err)
	assert.Equal(t, "North Mall II", updated.Name)

	_, err = svc.UpdateEstablishment(ctx, estAdmin, f.est2, EstablishmentInput{Name: "Taken over"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	assert.ErrorIs(t, svc.DeleteEstablishment(ctx, estAdmin, est.ID), apperrors.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteEstablishment(ctx, clientAdmin, f.est1), apperrors.ErrHasChildren)
	require.NoError(t, svc.DeleteEstablishment(ctx, clientAdmin, est.ID))

	_, err = svc.GetEstablishment(ctx, clientAdmin, est.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogService_LotsAndSlots(t *testing.T) {
	f := newFixture()
	svc := f.catalogService()
	ctx := context.Background()
	estAdmin := f.member(models.RoleClientEstablishmentAdmin, &f.est1)
	member := f.member(models.RoleClientMember, nil)

	lot, err := svc.CreateLot(ctx, estAdmin, f.est1, LotInput{LotCode: "L2"})
	require.NoError(t, err)
	assert.Equal(t, f.clientID, lot.ClientID)

	_, err = svc.CreateLot(ctx, estAdmin, f.est2, LotInput{LotCode: "L2"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.CreateLot(ctx, estAdmin, 999, LotInput{LotCode: "L9"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	lots, err := svc.ListLots(ctx, member, &f.est1, models.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, lots.Total)

	slot, err := svc.CreateSlot(ctx, estAdmin, lot.ID, SlotInput{
		SlotCode:   "A01",
		SlotTypeID: 1,
		Polygon:    json.RawMessage(`[[0,0],[2,0],[2,1]]`),
	})
	require.NoError(t, err)
	assert.Equal(t, f.est1, slot.EstablishmentID)
	assert.True(t, slot.Active, "slots are active unless stated otherwise")

	_, err = svc.CreateSlot(ctx, estAdmin, lot.ID, SlotInput{SlotCode: "A02", SlotTypeID: 1, Polygon: json.RawMessage(`{"x":1}`)})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateSlot(ctx, member, lot.ID, SlotInput{SlotCode: "A03", SlotTypeID: 1})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	slots, err := svc.ListSlots(ctx, member, lot.ID, models.ListOptions{Search: "a0"})
	require.NoError(t, err)
	assert.Equal(t, 1, slots.Total)

	inactive := false
	updated, err := svc.UpdateSlot(ctx, estAdmin, slot.ID, SlotInput{SlotCode: "A01", SlotTypeID: 1, Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.JSONEq(t, `[[0,0],[2,0],[2,1]]`, string(updated.Polygon), "omitted polygon keeps the stored geometry")

	updated, err = svc.UpdateSlot(ctx, estAdmin, slot.ID, SlotInput{SlotCode: "A01B", SlotTypeID: 1})
	require.NoError(t, err)
	assert.False(t, updated.Active, "omitted active keeps the stored flag")
	assert.Equal(t, "A01B", updated.SlotCode)
	assert.JSONEq(t, `[[0,0],[2,0],[2,1]]`, string(updated.Polygon))

	assert.ErrorIs(t, svc.DeleteLot(ctx, estAdmin, lot.ID), apperrors.ErrHasChildren)
	require.NoError(t, svc.DeleteSlot(ctx, estAdmin, slot.ID))
	require.NoError(t, svc.DeleteLot(ctx, estAdmin, lot.ID))
}

func TestCatalogService_IncludeDeletedIsAdminOnly(t *testing.T) {
	f := newFixture()
	svc := f.catalogService()
	ctx := context.Background()
	require.NoError(t, (&fakeSlotRepo{w: f.w}).SoftDelete(ctx, f.slot1))

	page, err := svc.ListSlots(ctx, f.member(models.RoleClientAdmin, nil), f.lot1, models.ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)

	page, err = svc.ListSlots(ctx, f.admin(), f.lot1, models.ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestCatalogService_ListLookups(t *testing.T) {
	f := newFixture()
	items, err := f.catalogService().ListLookups(context.Background(), repositories.SlotTypes)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	items, err = f.catalogService().ListLookups(context.Background(), repositories.VehicleTypes)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "car", items[0].Name)
}
