////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"crypto/rand"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/utils"

	"gitlab.com/weftnet/client/address"
)

const (
	// storageSubdir is the directory under the storage root that holds the
	// identity file. The location is an external contract; other tooling
	// reads the same path.
	storageSubdir = "storage"

	// identityFile is the name of the raw identity file.
	identityFile = "identity"
)

var (
	// ErrPersistFailed is returned when a newly generated identity cannot
	// be written to disk. The identity must not be used if it cannot be
	// persisted, or the node would change address on restart.
	ErrPersistFailed = errors.New("failed to persist identity to disk")

	// ErrCorruptFile is returned when an identity file exists but cannot
	// be parsed. The file is never silently regenerated; doing so would
	// change the node's address.
	ErrCorruptFile = errors.New("identity file is corrupt")
)

// Store manages the identity file under a storage root. One Store owns one
// identity.
type Store struct {
	root string

	mux      sync.Mutex
	identity *Identity
}

// NewStore creates a Store over the given storage root. No file access
// happens until CreateOrLoad.
func NewStore(storageRoot string) *Store {
	return &Store{root: storageRoot}
}

// CreateOrLoad returns the identity persisted under the storage root,
// generating and persisting a fresh one on first run. Calling it again
// returns the same identity; running it against the same root in a new
// process yields an identity with an identical hash.
func (s *Store) CreateOrLoad() (*Identity, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.identity != nil {
		return s.identity, nil
	}

	path := s.path()
	if utils.Exists(path) {
		data, err := utils.ReadFile(path)
		if err != nil {
			return nil, errors.WithMessagef(err,
				"failed to read identity file %s", path)
		}

		ident, err := Unmarshal(data)
		if err != nil {
			jww.ERROR.Printf("Identity file %s is unreadable: %+v", path, err)
			return nil, errors.WithMessagef(ErrCorruptFile, "%s", path)
		}

		s.identity = ident
		jww.INFO.Printf("Loaded identity %s from %s",
			ident.Hash().ShortString(), path)
		return ident, nil
	}

	ident, err := Generate(rand.Reader)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to generate identity")
	}

	if err = utils.MakeDirs(path, utils.DirPerms); err != nil {
		return nil, errors.WithMessagef(ErrPersistFailed, "%s: %+v", path, err)
	}
	if err = utils.WriteFileDef(path, ident.Marshal()); err != nil {
		return nil, errors.WithMessagef(ErrPersistFailed, "%s: %+v", path, err)
	}

	s.identity = ident
	jww.INFO.Printf("Generated new identity %s at %s",
		ident.Hash().ShortString(), path)
	return ident, nil
}

// Identity returns the loaded identity. The boolean is false before
// CreateOrLoad succeeds.
func (s *Store) Identity() (*Identity, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.identity, s.identity != nil
}

// Hash returns the loaded identity's address hash. The boolean is false
// before CreateOrLoad succeeds.
func (s *Store) Hash() (address.Hash, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.identity == nil {
		return address.Hash{}, false
	}
	return s.identity.Hash(), true
}

func (s *Store) path() string {
	return filepath.Join(s.root, storageSubdir, identityFile)
}
