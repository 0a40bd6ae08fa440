package repository

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"crosbuild.dev/alchemist/internal/profile"
)

// RepoSet is an ordered collection of overlays, root-dirs listed from
// least to most specific (masters first, the target board/project
// overlay last), matching Portage's layering convention.
type RepoSet struct {
	ordered []*Repo
	byName  map[string]*Repo
}

func NewRepoSet(rootDirs []string) (*RepoSet, error) {
	repoSet := &RepoSet{byName: make(map[string]*Repo)}

	for i, rootDir := range rootDirs {
		repo, err := parseRepo(repoSet, rootDir, i)
		if err != nil {
			return nil, fmt.Errorf("failed to parse repo: %s: %w", rootDir, err)
		}
		repoSet.ordered = append(repoSet.ordered, repo)
		repoSet.byName[repo.Name()] = repo
	}

	return repoSet, nil
}

func (s *RepoSet) Repo(name string) (*Repo, bool) {
	repo, ok := s.byName[name]
	return repo, ok
}

func (s *RepoSet) Repos() []*Repo { return append([]*Repo(nil), s.ordered...) }

func (s *RepoSet) Profile(name string) (*profile.Profile, error) {
	segments := strings.SplitN(name, ":", 2)
	if len(segments) != 2 {
		return nil, fmt.Errorf("invalid profile name: %s (must be <repo-name>:<profile-path>)", name)
	}
	repo, ok := s.byName[segments[0]]
	if !ok {
		return nil, fmt.Errorf("profile not found: %s (repository %s does not exist)", name, segments[0])
	}
	return repo.Profile(segments[1])
}

func (s *RepoSet) ProfileByPath(path string) (*profile.Profile, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	for _, repo := range s.byName {
		profilesDir := filepath.Join(repo.RootDir(), "profiles") + "/"
		if strings.HasPrefix(path, profilesDir) {
			return repo.Profile(path[len(profilesDir):])
		}
	}
	return nil, fmt.Errorf("profile not found at %s (not under known repository directory)", path)
}

func (s *RepoSet) EClassDirs() []string {
	var dirs []string
	for _, repo := range s.ordered {
		dirs = append(dirs, filepath.Join(repo.RootDir(), "eclass"))
	}
	return dirs
}

// PackageNames returns every "category/package" name owning at least one
// ebuild across all repositories in the set, deduplicated and sorted.
func (s *RepoSet) PackageNames() ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, repo := range s.ordered {
		repoNames, err := repo.PackageNames()
		if err != nil {
			return nil, err
		}
		for _, name := range repoNames {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Packages returns every ebuild named packageName across all repositories,
// most-preferred repository first (masters come first in rootDirs order, so
// we walk in reverse) and, within a repository, highest version first.
func (s *RepoSet) Packages(packageName string) ([]*Package, error) {
	var pkgs []*Package
	for i := len(s.ordered) - 1; i >= 0; i-- {
		repoPkgs, err := s.ordered[i].Packages(packageName)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, repoPkgs...)
	}
	return pkgs, nil
}
