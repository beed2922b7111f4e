////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"fmt"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
)

// PrefixSeparator delimits nested prefixes in a full key.
const PrefixSeparator = "/"

// Upgrade functions migrate a stored Object from one schema version to the
// next. Each must bump Object.Version.
type Upgrade func(old *Object) (*Object, error)

// UpgradeTable pairs the current version of a stored type with the chain of
// upgrades that bring older objects up to it. Table[n] upgrades version n
// to version n+1, so the table length must equal CurrentVersion.
type UpgradeTable struct {
	CurrentVersion uint64
	Table          []Upgrade
}

type root struct {
	data ekv.KeyValue
}

// KV stores versioned objects under prefixed keys in an ekv.KeyValue.
// Prefixed views share one root store.
type KV struct {
	r      *root
	prefix string
}

// NewKV creates a versioned key/value store backed by anything implementing
// ekv.KeyValue.
func NewKV(data ekv.KeyValue) *KV {
	return &KV{r: &root{data: data}}
}

// Get returns the object stored at the key for the given version. Check the
// returned error with Exists to distinguish absence from failure.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	key = v.makeKey(key, version)
	result := Object{}
	if err := v.r.data.Get(key, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAndUpgrade finds the newest stored version of the object at the key
// and runs it forward through the upgrade table until it reaches the
// current version.
func (v *KV) GetAndUpgrade(key string, ut UpgradeTable) (*Object, error) {
	baseKey := key

	if uint64(len(ut.Table)) != ut.CurrentVersion {
		jww.FATAL.Panicf("Cannot upgrade %s: table length (%d) does not "+
			"match the current version (%d)",
			v.makeKey(baseKey, ut.CurrentVersion), len(ut.Table),
			ut.CurrentVersion)
	}

	// Walk down from the current version until a stored object is found.
	var result *Object
	version := ut.CurrentVersion + 1
	for version != 0 {
		version--
		key = v.makeKey(baseKey, version)
		jww.TRACE.Printf("get %p with key %v", v.r.data, key)

		result = &Object{}
		if err := v.r.data.Get(key, result); err == nil {
			break
		}
	}

	if result == nil || len(result.Data) == 0 {
		return nil, errors.Errorf("failed to get %s at any version up to %d",
			baseKey, ut.CurrentVersion)
	}

	initialVersion := result.Version
	for result.Version < uint64(len(ut.Table)) {
		oldVersion := result.Version
		upgraded, err := ut.Table[oldVersion](result)
		if err != nil || upgraded.Version == oldVersion {
			jww.FATAL.Panicf("Failed to upgrade key %s from version %d "+
				"(initial version %d): %+v", key, oldVersion, initialVersion,
				err)
		}
		result = upgraded
	}

	return result, nil
}

// Set upserts the object at the key. The version under which it is stored
// comes from the object itself.
func (v *KV) Set(key string, object *Object) error {
	key = v.makeKey(key, object.Version)
	return v.r.data.Set(key, object)
}

// Delete removes the key at the given version from the store.
func (v *KV) Delete(key string, version uint64) error {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("delete %p with key %v", v.r.data, key)
	return v.r.data.Delete(key)
}

// Prefix returns a view of the KV with the prefix appended. The view shares
// the underlying store.
func (v *KV) Prefix(prefix string) *KV {
	return &KV{
		r:      v.r,
		prefix: v.prefix + prefix + PrefixSeparator,
	}
}

// GetPrefix returns the accumulated prefix of this view.
func (v *KV) GetPrefix() string {
	return v.prefix
}

// GetFullKey returns the key with all prefixes and the version suffix
// applied, as it appears in the underlying store.
func (v *KV) GetFullKey(key string, version uint64) string {
	return v.makeKey(key, version)
}

// IsMemStore determines if the underlying store is an in-memory ekv.
func (v *KV) IsMemStore() bool {
	_, ok := v.r.data.(*ekv.Memstore)
	return ok
}

func (v *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", v.prefix, key, version)
}

// Exists determines if the error from Get indicates a real failure rather
// than simple absence of the element.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}
