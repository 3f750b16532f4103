package profile

import (
	"io"
	"os"

	"github.com/htbsim/htbsim/internal/apperr"
	"gopkg.in/yaml.v3"
)

// Load reads a profile document from path (YAML; see htbExample.py's
// tuple-shaped profile for the equivalent data).
func Load(path string) (Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return Node{}, apperr.Config("opening profile %q: %v", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a profile document from an arbitrary reader, without
// touching disk. Load uses it for files; the API does not (it binds the
// request body's JSON straight into a Node).
func Decode(r io.Reader) (Node, error) {
	var n Node
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&n); err != nil {
		return Node{}, apperr.Config("decoding profile: %v", err)
	}
	return n, nil
}
