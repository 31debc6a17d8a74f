package emulated

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/samber/lo"
)

// manifestName is the template manifest file kept under each group's
// store path.
const manifestName = "templates.cbor"

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

// store is the template set of one (group, path) scope. Only metadata is
// persisted; biometric data is vendor territory and never exists here.
type store struct {
	dir     string
	records []fptypes.TemplateRecord
}

func openStore(dir string) (*store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	s := &store{dir: dir}

	b, err := os.ReadFile(filepath.Join(dir, manifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := cbor.Unmarshal(b, &s.records); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *store) save() error {
	b, err := encMode.Marshal(s.records)
	if err != nil {
		return err
	}

	tmp := filepath.Join(s.dir, manifestName+".tmp")
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(s.dir, manifestName))
}

func (s *store) ids() []fptypes.FingerID {
	return lo.Map(s.records, func(rec fptypes.TemplateRecord, _ int) fptypes.FingerID {
		return rec.Finger
	})
}

func (s *store) contains(fid fptypes.FingerID) bool {
	return lo.ContainsBy(s.records, func(rec fptypes.TemplateRecord) bool {
		return rec.Finger == fid
	})
}

func (s *store) add(rec fptypes.TemplateRecord) {
	s.records = append(s.records, rec)
}

func (s *store) remove(fid fptypes.FingerID) {
	s.records = lo.Reject(s.records, func(rec fptypes.TemplateRecord, _ int) bool {
		return rec.Finger == fid
	})
}

// nextFinger picks the next free finger id. Ids restart from 1; 0 is the
// empty-listing sentinel and never assigned.
func (s *store) nextFinger() fptypes.FingerID {
	next := fptypes.FingerID(1)
	for _, rec := range s.records {
		if rec.Finger >= next {
			next = rec.Finger + 1
		}
	}
	return next
}
