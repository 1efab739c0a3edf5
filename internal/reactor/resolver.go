package reactor

import (
	"os"
	"path/filepath"
	"strings"
)

// resolver turns a request path into an open file and a resourceKind,
// following the reference server's connection_get_resource_type: the
// static substring is checked before the dynamic one, and anything
// matching neither (or escaping its root) resolves to resourceInvalid.
type resolver struct {
	staticPrefix  string
	dynamicPrefix string
	staticRoot    string
	dynamicRoot   string
}

func newResolver(staticPrefix, dynamicPrefix, staticRoot, dynamicRoot string) *resolver {
	return &resolver{
		staticPrefix:  staticPrefix,
		dynamicPrefix: dynamicPrefix,
		staticRoot:    staticRoot,
		dynamicRoot:   dynamicRoot,
	}
}

// classify reports which root a request path belongs to, matching the
// C reference's strstr(conn->request_path, AWS_REL_STATIC_FOLDER) checks:
// the prefix string only needs to occur somewhere in the path, not anchor
// it, and the static substring is checked before the dynamic one.
func (r *resolver) classify(path string) resourceKind {
	switch {
	case strings.Contains(path, r.staticPrefix):
		return resourceStatic
	case strings.Contains(path, r.dynamicPrefix):
		return resourceDynamic
	default:
		return resourceInvalid
	}
}

// open resolves path to a local filesystem location under the
// appropriate root and opens it. Like the C reference's
// conn->filename[0] = '.'; strcat(conn->filename, conn->request_path),
// the whole request path (not just the part after the matched
// substring) is used as the relative filename under the resource's
// root. It refuses to open anything outside its root (the C reference
// implicitly trusts strcat; ..-escaping is the one spot a Go-idiomatic
// rewrite tightens over a literal transliteration).
func (r *resolver) open(path string) (*os.File, resourceKind, error) {
	kind := r.classify(path)

	var root string
	switch kind {
	case resourceStatic:
		root = r.staticRoot
	case resourceDynamic:
		root = r.dynamicRoot
	default:
		return nil, resourceInvalid, os.ErrNotExist
	}

	rel := strings.TrimPrefix(path, "/")
	full := filepath.Join(root, filepath.Clean("/"+rel))
	if !strings.HasPrefix(full, filepath.Clean(root)+string(filepath.Separator)) && full != filepath.Clean(root) {
		return nil, resourceInvalid, os.ErrNotExist
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, kind, err
	}
	return f, kind, nil
}
