package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserJSONNeverCarriesPassword(t *testing.T) {
	u := User{UserID: 1, Username: "jdoe", Password: "$2a$10$hash", Hobbies: []string{}, Orders: []Order{}}

	raw, err := json.Marshal(u)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "password")
	assert.Contains(t, fields, "userId")
}

func TestUniqueOrders(t *testing.T) {
	a := Order{ProductName: "X", Price: 10, Quantity: 2}
	b := Order{ProductName: "Y", Price: 5, Quantity: 1}

	assert.Equal(t, []Order{a, b}, UniqueOrders([]Order{a, b, a}))
	assert.NotNil(t, UniqueOrders(nil))
	assert.Equal(t, 20.0, a.Total())
}

func TestUserUpdateApply(t *testing.T) {
	u := User{Username: "old", Age: 30, IsActive: true}
	age := 31
	inactive := false
	upd := &UserUpdate{Age: &age, IsActive: &inactive}

	assert.False(t, upd.IsEmpty())
	upd.Apply(&u)

	assert.Equal(t, "old", u.Username)
	assert.Equal(t, 31, u.Age)
	assert.False(t, u.IsActive)
	assert.True(t, (&UserUpdate{}).IsEmpty())
}
