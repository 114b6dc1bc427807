package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dmitrijs2005/typerank/internal/filex"
)

// FileRepository keeps the profiles as one JSON array. A mutex serializes
// read-modify-write cycles; every save is a whole-document atomic rewrite.
type FileRepository struct {
	mu   sync.Mutex
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) load() ([]Profile, error) {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Profile{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	var list []Profile
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}
	return list, nil
}

func (r *FileRepository) save(list []Profile) error {
	if list == nil {
		list = []Profile{}
	}
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	if err := filex.WriteFileAtomic(r.path, b, 0o660); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	return nil
}

func (r *FileRepository) LoadAll(ctx context.Context) ([]Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileRepository) SaveAll(ctx context.Context, list []Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(list)
}

func (r *FileRepository) Upsert(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range list {
		if SameUsername(list[i].Username, p.Username) {
			list[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, p)
	}

	return r.save(list)
}
