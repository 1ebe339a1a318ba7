package paths

import (
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// HomeEnvVar overrides the asmlsp configuration/data directory
	HomeEnvVar = "ASMLSP_HOME"
	// DefaultDirName is the directory created under the user config dir
	DefaultDirName = "asm-lsp"
	// StoresDirName holds prebuilt knowledge-base stores
	StoresDirName = "stores"
	// LogFileName is the server log file inside the home directory
	LogFileName = "asmlsp.log"
)

// GetHome returns the asmlsp home directory: $ASMLSP_HOME if set, otherwise
// <user config dir>/asm-lsp.
func GetHome() (string, error) {
	if env := os.Getenv(HomeEnvVar); env != "" {
		return env, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultDirName), nil
}

// GetStoreDir returns the default directory holding serialized stores
func GetStoreDir() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, StoresDirName), nil
}

// GetLogPath returns the default server log path
func GetLogPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, LogFileName), nil
}

// GetGlobalConfigPath returns the path of a global project-config file name
// inside the home directory.
func GetGlobalConfigPath(name string) (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, name), nil
}

// NormalizePath normalizes a path by converting backslashes to forward slashes
// This is useful for paths that are already relative but need normalization
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}

// Clean returns an absolute, cleaned, slash-separated form of path. Relative
// paths are resolved against base.
func Clean(path string, base string) string {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// IsAncestor reports whether dir is path itself or one of its ancestor
// directories. The comparison is per path component, so "/a" is not an
// ancestor of "/ab". Either separator style is accepted; both arguments
// must be absolute.
func IsAncestor(dir string, path string) bool {
	if dir == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(path))
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, "../"))
}

// URIToPath converts a file:// URI to a filesystem path. Non-file URIs are
// returned unchanged.
func URIToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	p := u.Path
	// file:///C:/x parses to /C:/x on Windows
	if runtime.GOOS == "windows" && len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}

// PathToURI converts a filesystem path to a file:// URI
func PathToURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}
