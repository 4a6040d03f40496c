package visionapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCloudCameraThenGet(t *testing.T) {
	reg := NewRegistry(10, nil)
	entry, err := reg.AddCloudCamera("cloud:kitchen", "Kitchen")
	require.NoError(t, err)
	assert.Equal(t, "cloud:kitchen", entry.ID)
	assert.True(t, entry.Source.IsOpen())

	got, ok := reg.Get("cloud:kitchen")
	require.True(t, ok)
	assert.Same(t, entry, got)
}

func TestAddCloudCameraTwiceFails(t *testing.T) {
	reg := NewRegistry(10, nil)
	_, err := reg.AddCloudCamera("cloud:dup", "Dup")
	require.NoError(t, err)

	_, err = reg.AddCloudCamera("cloud:dup", "Dup")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestOnRegisterHookFires(t *testing.T) {
	var seen *CameraEntry
	reg := NewRegistry(10, func(e *CameraEntry) { seen = e })
	entry, err := reg.AddCloudCamera("cloud:hook", "Hook")
	require.NoError(t, err)
	assert.Same(t, entry, seen)
}

func TestClaimCodeIssueAndRedeem(t *testing.T) {
	reg := NewRegistry(10, nil)
	code := reg.IssueClaimCode("cloud:new-cam", "New Camera", "chat:123")
	assert.Len(t, code, 6)

	id, name, ok := reg.RedeemClaim(code)
	require.True(t, ok)
	assert.Equal(t, "cloud:new-cam", id)
	assert.Equal(t, "New Camera", name)

	// Redeemed codes are consumed.
	_, _, ok = reg.RedeemClaim(code)
	assert.False(t, ok)
}

func TestRedeemClaimIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry(10, nil)
	code := reg.IssueClaimCode("cloud:x", "X", "")

	lower := ""
	for _, c := range code {
		if c >= 'A' && c <= 'Z' {
			lower += string(c + ('a' - 'A'))
		} else {
			lower += string(c)
		}
	}

	_, _, ok := reg.RedeemClaim(lower)
	assert.True(t, ok)
}

func TestRedeemUnknownClaimFails(t *testing.T) {
	reg := NewRegistry(10, nil)
	_, _, ok := reg.RedeemClaim("NOPE00")
	assert.False(t, ok)
}

func TestPendingAnnouncementAcceptPromotesToRegistry(t *testing.T) {
	reg := NewRegistry(10, nil)
	reg.AddPendingAnnouncement("cloud:porch", "Porch", "1.2.3")

	pending := reg.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, "cloud:porch", pending[0].CameraID)
	assert.Equal(t, "1.2.3", pending[0].FirmwareVersion)

	entry, err := reg.AcceptPending("cloud:porch")
	require.NoError(t, err)
	assert.Equal(t, "cloud:porch", entry.ID)
	assert.Empty(t, reg.ListPending())

	_, ok := reg.Get("cloud:porch")
	assert.True(t, ok)
}

func TestPendingAnnouncementReject(t *testing.T) {
	reg := NewRegistry(10, nil)
	reg.AddPendingAnnouncement("cloud:reject-me", "Reject Me", "")

	assert.True(t, reg.RejectPending("cloud:reject-me"))
	assert.Empty(t, reg.ListPending())
	_, ok := reg.Get("cloud:reject-me")
	assert.False(t, ok)
}

func TestAcceptUnknownPendingFails(t *testing.T) {
	reg := NewRegistry(10, nil)
	_, err := reg.AcceptPending("cloud:ghost")
	assert.ErrorIs(t, err, ErrUnknownCamera)
}

func TestListIsSortedByID(t *testing.T) {
	reg := NewRegistry(10, nil)
	_, _ = reg.AddCloudCamera("cloud:b", "B")
	_, _ = reg.AddCloudCamera("cloud:a", "A")

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "cloud:a", list[0].ID)
	assert.Equal(t, "cloud:b", list[1].ID)
}
