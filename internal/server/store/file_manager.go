package store

import (
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/typerank/internal/filex"
	"github.com/dmitrijs2005/typerank/internal/server/bindings"
	"github.com/dmitrijs2005/typerank/internal/server/profiles"
)

// FileRepositoryManager keeps both collections as JSON documents under one
// state directory: bindings.json and profiles.json.
type FileRepositoryManager struct {
	bindings *bindings.FileRepository
	profiles *profiles.FileRepository

	// document paths, exposed for the snapshot uploader
	bindingsPath string
	profilesPath string
}

func NewFileRepositoryManager(stateDir string) (*FileRepositoryManager, error) {
	dir, err := filex.EnsureDir(stateDir)
	if err != nil {
		return nil, fmt.Errorf("state dir init error: %w", err)
	}

	bp := filepath.Join(dir, "bindings.json")
	pp := filepath.Join(dir, "profiles.json")

	return &FileRepositoryManager{
		bindings:     bindings.NewFileRepository(bp),
		profiles:     profiles.NewFileRepository(pp),
		bindingsPath: bp,
		profilesPath: pp,
	}, nil
}

func (m *FileRepositoryManager) Bindings() bindings.Repository {
	return m.bindings
}

func (m *FileRepositoryManager) Profiles() profiles.Repository {
	return m.profiles
}

func (m *FileRepositoryManager) Close() error {
	return nil
}

// DocumentPaths returns the two state document paths (bindings, profiles).
func (m *FileRepositoryManager) DocumentPaths() (string, string) {
	return m.bindingsPath, m.profilesPath
}
