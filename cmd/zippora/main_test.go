package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/fakebackend"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/session"
	zippora "github.com/ovaphlow/pitchfork/zippora-client-go/internal/zippora/entity"
)

func setup(t *testing.T) *fakebackend.Server {
	fb := fakebackend.New()
	t.Cleanup(fb.Close)
	t.Setenv("ZIPPORA_API_BASE_URL", fb.BaseURL())
	t.Setenv("ZIPPORA_API_TEST", "")
	t.Setenv("CREDENTIAL_BACKEND", "file")
	t.Setenv("CREDENTIAL_DIR", t.TempDir())
	t.Setenv("REVIEW_PROMPT_EVERY", "1000")
	return fb
}

func invoke(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, zap.NewNop().Sugar(), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSubscribeCopiesAddressAcrossRuns(t *testing.T) {
	fb := setup(t)
	id := fb.AddAccount("ann@example.com", "", session.HashPassword("secret1"))
	fb.AddProperty(fakebackend.Property{
		ApartmentID: "apt-1", ApartmentName: "Riverside Lofts",
		Address: "123 Main St, Austin, TX 78701, USA", Zipcode: "78701",
		Units: []zippora.Unit{{UnitID: "u-4b", UnitName: "4B"}},
	})

	code, _, stderr := invoke(t, "login", "-email", "ann@example.com", "-password", "secret1")
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := invoke(t, "subscribe", "apt-1", "u-4b", "78701")
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, stderr)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &res), stdout)
	assert.Equal(t, "4B", res["unitName"])
	assert.True(t, fb.Bound(id, "apt-1"))
	assert.Equal(t, "123 Main St", fb.ProfileField(id, "addressline1"))
	assert.Equal(t, "Apt 4B", fb.ProfileField(id, "addressline2"))
}

func TestSubscribeNeedsZipcode(t *testing.T) {
	setup(t)
	code, stdout, stderr := invoke(t, "subscribe", "apt-1", "u-4b")
	assert.Equal(t, 2, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "subscribe APARTMENT_ID UNIT_ID ZIPCODE")
}

func TestUnknownCommand(t *testing.T) {
	setup(t)
	code, _, stderr := invoke(t, "teleport")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: zippora")
}
