package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"melhor-casa/models"
	"melhor-casa/utils"
)

//go:embed schemas/user_data.json
var userDataSchema []byte

const userDataSchemaURL = "user_data.json"

// ErrInvalidUserID is returned for ids that cannot be used as a file name.
var ErrInvalidUserID = errors.New("invalid user id")

var userIDRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// UserStore keeps one JSON document per user in a data directory. Every
// read-modify-write runs under a single lock.
type UserStore struct {
	mu     sync.Mutex
	dir    string
	schema *jsonschema.Schema
	logger *utils.Logger
	now    func() time.Time
}

// NewUserStore creates the data directory and compiles the document schema.
func NewUserStore(dir string, logger *utils.Logger) (*UserStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("userstore: create data dir: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(userDataSchemaURL, bytes.NewReader(userDataSchema)); err != nil {
		return nil, fmt.Errorf("userstore: add schema: %w", err)
	}
	schema, err := compiler.Compile(userDataSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("userstore: compile schema: %w", err)
	}

	return &UserStore{dir: dir, schema: schema, logger: logger, now: time.Now}, nil
}

func (s *UserStore) path(userID string) (string, error) {
	if !userIDRegexp.MatchString(userID) {
		return "", fmt.Errorf("userstore: %q: %w", userID, ErrInvalidUserID)
	}
	return filepath.Join(s.dir, userID+".json"), nil
}

// Load returns the user's document, or an empty one when the file is missing
// or does not match the schema.
func (s *UserStore) Load(userID string) (*models.UserData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(userID)
}

func (s *UserStore) load(userID string) (*models.UserData, error) {
	path, err := s.path(userID)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return models.NewUserData(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("userstore: read %s: %w", userID, err)
	}

	if err := s.validate(raw); err != nil {
		s.logger.Warn("[userstore] Invalid document for %s, serving defaults: %v", userID, err)
		return models.NewUserData(), nil
	}

	data := models.NewUserData()
	if err := json.Unmarshal(raw, data); err != nil {
		s.logger.Warn("[userstore] Cannot decode document for %s, serving defaults: %v", userID, err)
		return models.NewUserData(), nil
	}
	if data.LikedProperties == nil {
		data.LikedProperties = []models.Property{}
	}
	if data.DislikedProperties == nil {
		data.DislikedProperties = []models.Property{}
	}
	if data.Cofrinho == nil {
		data.Cofrinho = []models.Property{}
	}
	return data, nil
}

func (s *UserStore) validate(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	return s.schema.Validate(v)
}

// Save overwrites the user's document, stamping LastUpdate.
func (s *UserStore) Save(userID string, data *models.UserData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(userID, data)
}

func (s *UserStore) save(userID string, data *models.UserData) error {
	path, err := s.path(userID)
	if err != nil {
		return err
	}
	data.LastUpdate = s.now().UTC()

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("userstore: encode %s: %w", userID, err)
	}
	if err := writeFileAtomic(path, raw); err != nil {
		return fmt.Errorf("userstore: %w", err)
	}
	s.logger.Debug("[userstore] Saved %s (%d liked, %d disliked, %d cofrinho)",
		userID, len(data.LikedProperties), len(data.DislikedProperties), len(data.Cofrinho))
	return nil
}

// AddLiked adds p to the user's liked list unless a record with the same ID
// is already there, and removes it from the disliked list.
func (s *UserStore) AddLiked(userID string, p models.Property) (*models.UserData, error) {
	return s.update(userID, func(d *models.UserData) {
		p.Status = models.StatusLiked
		d.LikedProperties = appendIfAbsent(d.LikedProperties, p)
		d.DislikedProperties = withoutID(d.DislikedProperties, p.ID)
	})
}

// AddDisliked mirrors AddLiked.
func (s *UserStore) AddDisliked(userID string, p models.Property) (*models.UserData, error) {
	return s.update(userID, func(d *models.UserData) {
		p.Status = models.StatusDisliked
		d.DislikedProperties = appendIfAbsent(d.DislikedProperties, p)
		d.LikedProperties = withoutID(d.LikedProperties, p.ID)
	})
}

// AddCofrinho adds p to the user's piggy-bank list unless already present.
func (s *UserStore) AddCofrinho(userID string, p models.Property) (*models.UserData, error) {
	return s.update(userID, func(d *models.UserData) {
		d.Cofrinho = appendIfAbsent(d.Cofrinho, p)
	})
}

func (s *UserStore) update(userID string, fn func(d *models.UserData)) (*models.UserData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load(userID)
	if err != nil {
		return nil, err
	}
	fn(data)
	if err := s.save(userID, data); err != nil {
		return nil, err
	}
	return data, nil
}

func appendIfAbsent(list []models.Property, p models.Property) []models.Property {
	for _, existing := range list {
		if existing.ID == p.ID {
			return list
		}
	}
	return append(list, p)
}

func withoutID(list []models.Property, id string) []models.Property {
	out := list[:0:0]
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	if out == nil {
		out = []models.Property{}
	}
	return out
}
