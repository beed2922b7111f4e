////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mesh

import (
	"sort"
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/weftnet/client/address"
	"gitlab.com/weftnet/client/identity"
)

// Entry is one remote identity learned from announces.
type Entry struct {
	Identity    address.Hash
	Public      identity.Public
	DisplayName string
	AppData     []byte
	LastHeard   time.Time
}

// directory retains what announces teach about remote identities. The
// session's announcement worker is its single writer.
type directory struct {
	mux     sync.RWMutex
	entries map[address.Hash]Entry
}

func newDirectory() *directory {
	return &directory{entries: make(map[address.Hash]Entry)}
}

// record stores or refreshes the entry for the announcing identity.
func (d *directory) record(a Announcement) {
	entry := Entry{
		Identity:    a.Source,
		Public:      a.Public,
		DisplayName: ParseAnnounceData(a.AppData),
		AppData:     a.AppData,
		LastHeard:   a.At,
	}

	d.mux.Lock()
	d.entries[a.Source] = entry
	d.mux.Unlock()

	jww.DEBUG.Printf("Directory heard %s (%q)",
		a.Source.ShortString(), entry.DisplayName)
}

// lookup returns the entry for the identity hash, if one was ever heard.
func (d *directory) lookup(h address.Hash) (Entry, bool) {
	d.mux.RLock()
	defer d.mux.RUnlock()
	entry, ok := d.entries[h]
	return entry, ok
}

// displayName returns the announced display name for the identity hash.
// The boolean is false when the identity is unknown or announced no
// readable name.
func (d *directory) displayName(h address.Hash) (string, bool) {
	entry, ok := d.lookup(h)
	if !ok || entry.DisplayName == "" {
		return "", false
	}
	return entry.DisplayName, true
}

// list returns a snapshot of all entries, most recently heard first.
func (d *directory) list() []Entry {
	d.mux.RLock()
	entries := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		entries = append(entries, e)
	}
	d.mux.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastHeard.After(entries[j].LastHeard)
	})
	return entries
}
