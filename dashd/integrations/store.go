// Package integrations stores model provider credentials and settings.
package integrations

import (
	"context"
	"encoding/json"
	"os"

	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/openclaw/dashboard/dashd/filedoc"
	"github.com/openclaw/dashboard/dashsdk"
)

// DocumentVersion is written to every saved document.
const DocumentVersion = 1

// ErrUnknownProvider is returned for provider ids outside Schemas.
var ErrUnknownProvider = xerrors.New("unsupported provider")

// Document is the persisted form of every provider's settings.
type Document struct {
	Version   int                           `json:"version"`
	Providers map[dashsdk.ProviderID]Config `json:"providers"`
}

// Provider returns the normalized config for id, or nil for unknown ids.
func (d Document) Provider(id dashsdk.ProviderID) Config {
	s, ok := Lookup(id)
	if !ok {
		return nil
	}
	return normalize(s, d.Providers[id])
}

// DefaultDocument holds every provider at its defaults.
func DefaultDocument() Document {
	doc := Document{
		Version:   DocumentVersion,
		Providers: make(map[dashsdk.ProviderID]Config, len(Schemas)),
	}
	for _, s := range Schemas {
		doc.Providers[s.ID] = s.Defaults()
	}
	return doc
}

// Store persists the provider document. Every operation re-reads the file
// under the lock, so edits made while the server runs are honored.
type Store struct {
	log    slog.Logger
	file   *filedoc.File
	policy MergePolicy
}

func NewStore(path string, log slog.Logger) *Store {
	return &Store{
		log:    log,
		file:   filedoc.New(path, 0o600),
		policy: DefaultMergePolicy,
	}
}

func (s *Store) Path() string {
	return s.file.Path()
}

// Load returns the document merged over the defaults. A missing or
// unreadable file yields the defaults.
func (s *Store) Load(ctx context.Context) (Document, error) {
	unlock, err := s.file.Lock(ctx)
	if err != nil {
		return Document{}, err
	}
	defer unlock()
	return s.load(ctx), nil
}

// Get returns one provider's normalized config.
func (s *Store) Get(ctx context.Context, id dashsdk.ProviderID) (Config, error) {
	if _, ok := Lookup(id); !ok {
		return nil, ErrUnknownProvider
	}
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Provider(id), nil
}

// Update merges patches into the stored document and saves it. Unknown
// providers are skipped and reported back.
func (s *Store) Update(ctx context.Context, patches map[dashsdk.ProviderID]map[string]any) (Document, []dashsdk.ProviderID, error) {
	unlock, err := s.file.Lock(ctx)
	if err != nil {
		return Document{}, nil, err
	}
	defer unlock()

	doc := s.load(ctx)
	var ignored []dashsdk.ProviderID
	for id, patch := range patches {
		schema, ok := Lookup(id)
		if !ok {
			ignored = append(ignored, id)
			continue
		}
		doc.Providers[id] = s.policy.Apply(schema, doc.Providers[id], patch)
	}
	if _, err := s.file.Write(doc); err != nil {
		return Document{}, nil, xerrors.Errorf("save providers: %w", err)
	}
	s.log.Info(ctx, "provider settings updated", slog.F("providers", len(patches)-len(ignored)))
	return doc, ignored, nil
}

// Draft merges patch over the saved config for id without persisting it.
func (s *Store) Draft(ctx context.Context, id dashsdk.ProviderID, patch map[string]any) (Config, error) {
	schema, ok := Lookup(id)
	if !ok {
		return nil, ErrUnknownProvider
	}
	saved, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.policy.Apply(schema, saved, patch), nil
}

func (s *Store) load(ctx context.Context) Document {
	doc := DefaultDocument()
	data, _, err := s.file.Read()
	if err != nil {
		if !xerrors.Is(err, os.ErrNotExist) {
			s.log.Warn(ctx, "read provider settings, using defaults", slog.Error(err))
		}
		return doc
	}

	var stored struct {
		Version   int                                   `json:"version"`
		Providers map[dashsdk.ProviderID]map[string]any `json:"providers"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		s.log.Warn(ctx, "provider settings unreadable, using defaults",
			slog.F("path", s.file.Path()), slog.Error(err))
		return doc
	}
	if stored.Version > 0 {
		doc.Version = stored.Version
	}
	for _, schema := range Schemas {
		doc.Providers[schema.ID] = normalize(schema, stored.Providers[schema.ID])
	}
	return doc
}
