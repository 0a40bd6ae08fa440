// Package manifest parses Portage Manifest files (the DIST-line ledger
// of distfile sizes and hashes that sits next to an ebuild) and derives
// Subresource-Integrity-style strings from them.
package manifest

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dist is one DIST entry: a distfile's size and its hashes, keyed by
// algorithm name exactly as Manifest spells it (SHA256, SHA512, BLAKE2B).
type Dist struct {
	Filename string
	Size     int64
	Hashes   map[string]string
}

// Manifest is the set of DIST entries declared for one ebuild directory,
// keyed by filename.
type Manifest struct {
	Dists map[string]*Dist
}

// Load reads and parses the Manifest file in dir. Only DIST lines are
// kept; every other line kind (EBUILD, AUX, MISC) is Manifest bookkeeping
// this core has no use for.
func Load(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "Manifest"))
	if err != nil {
		return nil, err
	}

	m := &Manifest{Dists: make(map[string]*Dist)}
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "DIST" {
			continue
		}

		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: invalid size for %s: %w", dir, fields[1], err)
		}

		hashes := make(map[string]string)
		for i := 3; i+1 < len(fields); i += 2 {
			hashes[fields[i]] = fields[i+1]
		}

		m.Dists[fields[1]] = &Dist{Filename: fields[1], Size: size, Hashes: hashes}
	}
	return m, nil
}

// preferredHashOrder lists the hash algorithms integrity selection
// prefers, strongest first.
var preferredHashOrder = []string{"SHA512", "SHA256", "BLAKE2B"}

// Integrity computes a Subresource-Integrity-style string
// ("<algo>-<base64>") from the dist entry's hashes, preferring SHA512
// over SHA256 over BLAKE2B. Returns an error if none of those hashes are
// present.
func (d *Dist) Integrity() (string, error) {
	for _, name := range preferredHashOrder {
		hexHash, ok := d.Hashes[name]
		if !ok {
			continue
		}
		raw, err := hex.DecodeString(hexHash)
		if err != nil {
			return "", fmt.Errorf("manifest: invalid %s hash for %s: %w", name, d.Filename, err)
		}
		return fmt.Sprintf("%s-%s", strings.ToLower(name), base64.StdEncoding.EncodeToString(raw)), nil
	}
	return "", fmt.Errorf("manifest: no supported hash found for %s", d.Filename)
}
