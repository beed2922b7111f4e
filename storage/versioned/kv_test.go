////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"
)

// Tests that an object set under a key comes back unchanged from Get.
func TestKV_SetGet(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())
	original := &Object{
		Version:   0,
		Timestamp: time.Now(),
		Data:      []byte("weft test data"),
	}

	require.NoError(t, kv.Set("testKey", original))

	loaded, err := kv.Get("testKey", 0)
	require.NoError(t, err)
	require.Equal(t, original.Version, loaded.Version)
	require.True(t, bytes.Equal(original.Data, loaded.Data))
}

// Tests that Get on an absent key returns an error that Exists reports as
// absence.
func TestKV_Get_Absent(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())

	_, err := kv.Get("missing", 0)
	require.Error(t, err)
	require.False(t, kv.Exists(err))
}

// Tests that objects stored under different prefixes do not collide and
// that GetPrefix accumulates.
func TestKV_Prefix(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())
	a := kv.Prefix("alpha")
	b := kv.Prefix("beta")

	require.Equal(t, "alpha"+PrefixSeparator, a.GetPrefix())
	require.Equal(t, "alpha"+PrefixSeparator+"nested"+PrefixSeparator,
		a.Prefix("nested").GetPrefix())

	require.NoError(t, a.Set("key", &Object{Data: []byte("from a")}))

	_, err := b.Get("key", 0)
	require.Error(t, err, "object stored under one prefix is visible "+
		"under another")

	loaded, err := a.Get("key", 0)
	require.NoError(t, err)
	require.Equal(t, []byte("from a"), loaded.Data)
}

// Tests that Delete removes the object so that a subsequent Get fails.
func TestKV_Delete(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())

	require.NoError(t, kv.Set("testKey", &Object{Data: []byte("data")}))
	require.NoError(t, kv.Delete("testKey", 0))

	_, err := kv.Get("testKey", 0)
	require.Error(t, err)
}

// Tests that GetAndUpgrade finds an old object and runs it forward through
// the upgrade table.
func TestKV_GetAndUpgrade(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())

	require.NoError(t, kv.Set("testKey", &Object{
		Version: 0,
		Data:    []byte("old"),
	}))

	ut := UpgradeTable{
		CurrentVersion: 1,
		Table: []Upgrade{
			func(old *Object) (*Object, error) {
				return &Object{
					Version:   1,
					Timestamp: old.Timestamp,
					Data:      append(old.Data, []byte(" upgraded")...),
				}, nil
			},
		},
	}

	result, err := kv.GetAndUpgrade("testKey", ut)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.Version)
	require.Equal(t, []byte("old upgraded"), result.Data)
}

// Tests that GetAndUpgrade prefers the newest stored version when both old
// and new exist.
func TestKV_GetAndUpgrade_NewestWins(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())

	require.NoError(t, kv.Set("testKey", &Object{Version: 0, Data: []byte("v0")}))
	require.NoError(t, kv.Set("testKey", &Object{Version: 1, Data: []byte("v1")}))

	upgradeCalled := false
	ut := UpgradeTable{
		CurrentVersion: 1,
		Table: []Upgrade{
			func(old *Object) (*Object, error) {
				upgradeCalled = true
				return &Object{Version: 1, Data: old.Data}, nil
			},
		},
	}

	result, err := kv.GetAndUpgrade("testKey", ut)
	require.NoError(t, err)
	require.False(t, upgradeCalled, "upgrade ran on an already-current object")
	require.Equal(t, []byte("v1"), result.Data)
}

// Tests that IsMemStore distinguishes the in-memory backend.
func TestKV_IsMemStore(t *testing.T) {
	require.True(t, NewKV(ekv.MakeMemstore()).IsMemStore())
}
